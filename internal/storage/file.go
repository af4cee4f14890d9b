package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
)

// FileStore keeps one JSONL file per agent per day:
//
//	<dir>/agents/<date>/<agent>.jsonl
//	<dir>/wrapups/<date>/<agent>.jsonl
//	<dir>/audit/<date>.jsonl
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) AppendAgentEvent(_ context.Context, event types.AgentEvent) error {
	if err := ValidAgentKey(event.Agent); err != nil {
		return err
	}
	path := filepath.Join(s.dir, "agents", types.DateKey(event.Timestamp), event.Agent+".jsonl")
	return appendLine(path, event)
}

func (s *FileStore) AgentEvents(_ context.Context, agent, date string) ([]types.AgentEvent, error) {
	if err := ValidAgentKey(agent); err != nil {
		return nil, err
	}
	if err := ValidDate(date); err != nil {
		return nil, err
	}
	var events []types.AgentEvent
	path := filepath.Join(s.dir, "agents", date, agent+".jsonl")
	if err := readLines(path, func(line []byte) error {
		var e types.AgentEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		events = append(events, e)
		return nil
	}, s.logger); err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (s *FileStore) AppendWrapUp(_ context.Context, wrapUp types.WrapUp) error {
	if err := ValidAgentKey(wrapUp.Agent); err != nil {
		return err
	}
	path := filepath.Join(s.dir, "wrapups", types.DateKey(wrapUp.Timestamp), wrapUp.Agent+".jsonl")
	return appendLine(path, wrapUp)
}

func (s *FileStore) WrapUps(_ context.Context, agent, date string) ([]types.WrapUp, error) {
	if err := ValidAgentKey(agent); err != nil {
		return nil, err
	}
	if err := ValidDate(date); err != nil {
		return nil, err
	}
	var out []types.WrapUp
	path := filepath.Join(s.dir, "wrapups", date, agent+".jsonl")
	err := readLines(path, func(line []byte) error {
		var w types.WrapUp
		if err := json.Unmarshal(line, &w); err != nil {
			return err
		}
		out = append(out, w)
		return nil
	}, s.logger)
	return out, err
}

func (s *FileStore) AppendSupervisorAction(_ context.Context, action types.SupervisorAction) error {
	path := filepath.Join(s.dir, "audit", types.DateKey(action.Timestamp)+".jsonl")
	return appendLine(path, action)
}

func (s *FileStore) SupervisorActions(_ context.Context, date string) ([]types.SupervisorAction, error) {
	if err := ValidDate(date); err != nil {
		return nil, err
	}
	var out []types.SupervisorAction
	path := filepath.Join(s.dir, "audit", date+".jsonl")
	err := readLines(path, func(line []byte) error {
		var a types.SupervisorAction
		if err := json.Unmarshal(line, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	}, s.logger)
	return out, err
}

// appendLine writes v as one JSON line under an exclusive flock, so
// concurrent processes sharing the directory never interleave a record.
func appendLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create stream dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock stream: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync stream: %w", err)
	}
	return nil
}

// readLines feeds every non-empty line to decode. A missing file is an
// empty stream; malformed lines are logged and skipped.
func readLines(path string, decode func([]byte) error, logger zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			logger.Warn().Err(err).Str("path", path).Int("line", lineNo).Msg("skipping malformed record")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan stream: %w", err)
	}
	return nil
}
