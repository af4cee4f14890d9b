package dialplan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/lock"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
)

// Reloader asks the switch to reread one module's configuration
type Reloader interface {
	Reload(ctx context.Context, module string) error
}

// Applier writes artifacts into the switch's config directory and reloads.
// Write and reload of one artifact never interleave with another apply of
// the same artifact; the last writer wins.
type Applier struct {
	dir      string
	reloader Reloader
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewApplier creates an applier writing into dir
func NewApplier(dir string, reloader Reloader, locker lock.Locker, m *metrics.Metrics, logger zerolog.Logger) *Applier {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Applier{
		dir:      dir,
		reloader: reloader,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("component", "applier").Logger(),
	}
}

// Apply writes a and reloads its module. A write failure skips the reload
// and returns a config write error; a reload failure leaves the new file in
// place and returns a reload error.
func (a *Applier) Apply(ctx context.Context, art Artifact) (err error) {
	defer func() { a.metrics.RecordApply(art.Kind, err) }()

	unlock, err := a.locker.Lock(ctx, "artifact:"+art.Name)
	if err != nil {
		return err
	}
	defer unlock()

	path := filepath.Join(a.dir, art.Name)
	if err := writeAtomic(path, art.Body); err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("config write failed")
		return apperr.New(apperr.KindConfigWrite, "apply", path, err)
	}

	if err := a.reloader.Reload(ctx, art.Module); err != nil {
		a.logger.Error().Err(err).Str("artifact", art.Name).Str("module", art.Module).Msg("reload failed")
		if apperr.KindOf(err) == apperr.KindReload {
			return err
		}
		return apperr.New(apperr.KindReload, "apply", art.Module, err)
	}

	a.logger.Info().
		Str("artifact", art.Name).
		Int("bytes", len(art.Body)).
		Str("module", art.Module).
		Msg("artifact applied")
	return nil
}

// writeAtomic replaces path with data through a temp file and rename, so a
// reader sees either the old file or the new one
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

// GroupResult is the outcome of one group in a batch apply
type GroupResult struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Artifact string `json:"artifact,omitempty"`
	Err      error  `json:"-"`
}

// ApplyAll compiles and applies every group, continuing past failures
func (a *Applier) ApplyAll(ctx context.Context, groups []types.RingGroup, shuffler Shuffler) []GroupResult {
	results := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		res := GroupResult{ID: g.ID, Number: g.Number}
		art, err := CompileRingGroup(g, shuffler)
		if err == nil {
			res.Artifact = art.Name
			err = a.Apply(ctx, art)
		}
		res.Err = err
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results
}
