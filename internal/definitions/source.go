// Package definitions reads ring group and queue definitions. The control
// plane never edits them; it only compiles what it finds.
package definitions

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/types"
	"gopkg.in/yaml.v3"
)

// Source is a read-only view of distribution definitions
type Source interface {
	RingGroups(ctx context.Context) ([]types.RingGroup, error)
	RingGroup(ctx context.Context, id int64) (types.RingGroup, error)
	Queues(ctx context.Context) ([]types.Queue, error)
	Queue(ctx context.Context, name string) (types.Queue, error)
	QueueMembers(ctx context.Context, queues []string) (map[string][]types.QueueMember, error)
}

// Static serves definitions held in memory
type Static struct {
	groups  []types.RingGroup
	queues  []types.Queue
	members map[string][]types.QueueMember
}

// File is the YAML layout accepted by LoadFile
type File struct {
	RingGroups []types.RingGroup `yaml:"ring_groups"`
	Queues     []struct {
		Name        string              `yaml:"name"`
		Strategy    types.QueueStrategy `yaml:"strategy"`
		Timeout     int                 `yaml:"timeout"`
		Retry       int                 `yaml:"retry"`
		MaxWait     int                 `yaml:"max_wait"`
		MaxLen      int                 `yaml:"max_len"`
		SLThreshold int                 `yaml:"sl_threshold"`
		Department  string              `yaml:"department"`
		Members     []struct {
			Interface string `yaml:"interface"`
			Name      string `yaml:"name"`
			Penalty   int    `yaml:"penalty"`
			Paused    bool   `yaml:"paused"`
			Disabled  bool   `yaml:"disabled"`
		} `yaml:"members"`
	} `yaml:"queues"`
}

// NewStatic builds a source from already decoded definitions
func NewStatic(groups []types.RingGroup, queues []types.Queue, members map[string][]types.QueueMember) *Static {
	if members == nil {
		members = make(map[string][]types.QueueMember)
	}
	return &Static{groups: groups, queues: queues, members: members}
}

// LoadFile reads definitions from a YAML file
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML definitions. Ring groups without an id are numbered
// in file order.
func Parse(data []byte) (*Static, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.New(apperr.KindValidation, "definitions", "yaml", err)
	}

	groups := f.RingGroups
	for i := range groups {
		if groups[i].ID == 0 {
			groups[i].ID = int64(i + 1)
		}
	}

	queues := make([]types.Queue, 0, len(f.Queues))
	members := make(map[string][]types.QueueMember)
	for i, q := range f.Queues {
		queues = append(queues, types.Queue{
			ID:          int64(i + 1),
			Name:        q.Name,
			Strategy:    q.Strategy,
			Timeout:     q.Timeout,
			Retry:       q.Retry,
			MaxWait:     q.MaxWait,
			MaxLen:      q.MaxLen,
			SLThreshold: q.SLThreshold,
			Department:  q.Department,
		})
		for _, m := range q.Members {
			members[q.Name] = append(members[q.Name], types.QueueMember{
				Queue:     q.Name,
				Interface: m.Interface,
				Name:      m.Name,
				Penalty:   m.Penalty,
				Paused:    m.Paused,
				Enabled:   !m.Disabled,
			})
		}
	}
	return NewStatic(groups, queues, members), nil
}

func (s *Static) RingGroups(_ context.Context) ([]types.RingGroup, error) {
	out := make([]types.RingGroup, len(s.groups))
	copy(out, s.groups)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) RingGroup(_ context.Context, id int64) (types.RingGroup, error) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return types.RingGroup{}, apperr.NotFound("ring group", fmt.Sprintf("ring group %d", id))
}

func (s *Static) Queues(_ context.Context) ([]types.Queue, error) {
	out := make([]types.Queue, len(s.queues))
	copy(out, s.queues)
	return out, nil
}

func (s *Static) Queue(_ context.Context, name string) (types.Queue, error) {
	for _, q := range s.queues {
		if q.Name == name {
			return q, nil
		}
	}
	return types.Queue{}, apperr.NotFound("queue", "queue "+name)
}

func (s *Static) QueueMembers(_ context.Context, queues []string) (map[string][]types.QueueMember, error) {
	out := make(map[string][]types.QueueMember, len(queues))
	for _, name := range queues {
		if ms, ok := s.members[name]; ok {
			out[name] = append([]types.QueueMember(nil), ms...)
		}
	}
	return out, nil
}
