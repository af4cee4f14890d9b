package definitions

import (
	"context"
	"errors"
	"testing"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/types"
)

const sample = `
ring_groups:
  - number: "600"
    name: Front desk
    strategy: hunt
    ring_time: 15
    members:
      - {type: extension, value: "101", enabled: true}
      - {type: extension, value: "102", enabled: false}
      - {type: external, value: "+4930123456", enabled: true}
    fallback: {type: queue, value: sales}
queues:
  - name: sales
    strategy: rrmemory
    timeout: 15
    sl_threshold: 20
    members:
      - {interface: PJSIP/101, name: Alice, penalty: 0, paused: true}
      - {interface: PJSIP/102, penalty: 1, disabled: true}
`

func TestParseDefinitions(t *testing.T) {
	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ctx := context.Background()

	g, err := s.RingGroup(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Strategy != types.RingHunt || g.RingTime != 15 || len(g.Members) != 3 {
		t.Errorf("unexpected group: %+v", g)
	}
	if g.Members[2].Type != types.MemberExternal || g.Fallback.Value != "sales" {
		t.Errorf("unexpected member order or fallback: %+v", g)
	}

	q, err := s.Queue(ctx, "sales")
	if err != nil || q.Strategy != types.QueueRRMemory || q.SLThreshold != 20 {
		t.Errorf("unexpected queue: %+v, %v", q, err)
	}

	members, _ := s.QueueMembers(ctx, []string{"sales", "ghost"})
	if len(members["sales"]) != 2 || members["sales"][1].Enabled || !members["sales"][0].Paused {
		t.Errorf("unexpected members: %+v", members)
	}
	if _, ok := members["ghost"]; ok {
		t.Error("unknown queue must be absent")
	}
}

func TestNotFound(t *testing.T) {
	s := NewStatic(nil, nil, nil)
	ctx := context.Background()

	if _, err := s.RingGroup(ctx, 9); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := s.Queue(ctx, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := Parse([]byte("ring_groups: [")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
