package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/asterisk"
	"github.com/dennisdiepolder/callctl/internal/asterisk/asterisktest"
	"github.com/dennisdiepolder/callctl/internal/ledger"
	"github.com/dennisdiepolder/callctl/internal/lock"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fixture struct {
	runner     *asterisktest.Runner
	store      *storage.FileStore
	ledger     *ledger.Ledger
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New(prometheus.NewRegistry())
	runner := asterisktest.NewRunner()
	client := asterisk.NewClient(runner, timeout, m, zerolog.Nop())
	l := ledger.New(store, lock.NewMemoryLocker(), m, zerolog.Nop())
	return &fixture{
		runner:     runner,
		store:      store,
		ledger:     l,
		dispatcher: NewDispatcher(client, store, l, m, zerolog.Nop()),
	}
}

func (f *fixture) audit(t *testing.T) []types.SupervisorAction {
	t.Helper()
	entries, err := f.store.SupervisorActions(context.Background(), types.DateKey(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestDispatchRejectsBadTargetsBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty target", Request{Kind: types.ActionHangup, Supervisor: "sup1"}},
		{"malformed target", Request{Kind: types.ActionHangup, Supervisor: "sup1", Target: "101; rm -rf"}},
		{"unknown kind", Request{Kind: "mute", Supervisor: "sup1", Target: "PJSIP/101-00000001"}},
		{"listen without origin", Request{Kind: types.ActionListen, Supervisor: "sup1", Target: "PJSIP/101-00000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			_, err := f.dispatcher.Dispatch(context.Background(), tt.req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if n := len(f.runner.Commands()); n != 0 {
				t.Errorf("%d commands issued", n)
			}
			if n := len(f.audit(t)); n != 0 {
				t.Errorf("%d audit records written", n)
			}
		})
	}
}

func TestDispatchSpyOptions(t *testing.T) {
	tests := []struct {
		kind types.SupervisorActionKind
		want string
	}{
		{types.ActionListen, "channel originate PJSIP/900 application ChanSpy PJSIP/101-0000002a,qE"},
		{types.ActionWhisper, "channel originate PJSIP/900 application ChanSpy PJSIP/101-0000002a,qwE"},
		{types.ActionBarge, "channel originate PJSIP/900 application ChanSpy PJSIP/101-0000002a,qBE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newFixture(t, time.Second)
			f.runner.On("channel originate", "")

			entry, err := f.dispatcher.Dispatch(context.Background(), Request{
				Kind:       tt.kind,
				Supervisor: "sup1",
				Target:     "PJSIP/101-0000002a",
				Origin:     "PJSIP/900",
			})
			if err != nil {
				t.Fatal(err)
			}
			cmds := f.runner.Commands()
			if len(cmds) != 1 || cmds[0] != tt.want {
				t.Errorf("commands = %q, want %q", cmds, tt.want)
			}
			if entry.Action != tt.kind || entry.ID == "" {
				t.Errorf("unexpected audit entry %+v", entry)
			}
		})
	}
}

func TestDispatchAuditSurvivesTimeout(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.runner.Block = true

	_, err := f.dispatcher.Dispatch(context.Background(), Request{
		Kind:       types.ActionHangup,
		Supervisor: "sup1",
		Target:     "PJSIP/101-0000002a",
	})
	if !errors.Is(err, apperr.ErrCommand) {
		t.Fatalf("expected command error, got %v", err)
	}

	entries := f.audit(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(entries))
	}
	if entries[0].Supervisor != "sup1" || entries[0].TargetChannel != "PJSIP/101-0000002a" {
		t.Errorf("unexpected audit record %+v", entries[0])
	}
}

func TestDispatchForceStatusAppendsLedger(t *testing.T) {
	f := newFixture(t, time.Second)
	f.runner.On("queue pause member", "paused interface PJSIP/101")

	_, err := f.dispatcher.Dispatch(context.Background(), Request{
		Kind:       types.ActionForceStatus,
		Supervisor: "sup1",
		Target:     "PJSIP/101",
		Queue:      "sales",
		Paused:     true,
		Reason:     "Coaching",
	})
	if err != nil {
		t.Fatal(err)
	}

	events, err := f.ledger.Events(context.Background(), "101", types.DateKey(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != types.EventPause || events[0].Reason != "Coaching" {
		t.Errorf("unexpected ledger %+v", events)
	}
	if audit := f.audit(t); len(audit) != 1 || !strings.Contains(audit[0].Detail, "reason=Coaching") {
		t.Errorf("unexpected audit %+v", audit)
	}
}

func TestDispatchForceStatusFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, time.Second)
	f.runner.On("queue unpause member", "Interface not found")

	_, err := f.dispatcher.Dispatch(context.Background(), Request{
		Kind:       types.ActionForceStatus,
		Supervisor: "sup1",
		Target:     "PJSIP/101",
	})
	if !errors.Is(err, apperr.ErrCommand) {
		t.Fatalf("expected command error, got %v", err)
	}
	events, _ := f.ledger.Events(context.Background(), "101", types.DateKey(time.Now()))
	if len(events) != 0 {
		t.Errorf("ledger written after failed command: %+v", events)
	}
}

func TestAgentOf(t *testing.T) {
	tests := map[string]string{
		"PJSIP/101":              "101",
		"PJSIP/101-0000002a":     "101",
		"PJSIP/agent-smith":      "agent-smith",
		"SIP/trunk-out-000000ff": "trunk-out",
	}
	for in, want := range tests {
		if got := AgentOf(in); got != want {
			t.Errorf("AgentOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatchForceStatusOnChannelPausesMember(t *testing.T) {
	f := newFixture(t, time.Second)
	f.runner.On("queue pause member", "paused interface PJSIP/101")

	_, err := f.dispatcher.Dispatch(context.Background(), Request{
		Kind:       types.ActionForceStatus,
		Supervisor: "sup1",
		Target:     "PJSIP/101-0000002a",
		Queue:      "sales",
		Paused:     true,
	})
	if err != nil {
		t.Fatal(err)
	}

	cmds := f.runner.Commands()
	if len(cmds) != 1 || cmds[0] != "queue pause member PJSIP/101 queue sales" {
		t.Errorf("unexpected commands: %q", cmds)
	}
	events, _ := f.ledger.Events(context.Background(), "101", types.DateKey(time.Now()))
	if len(events) != 1 || events[0].Kind != types.EventPause {
		t.Errorf("unexpected ledger %+v", events)
	}
	if audit := f.audit(t); len(audit) != 1 || audit[0].TargetChannel != "PJSIP/101-0000002a" {
		t.Errorf("audit must keep the requested target: %+v", audit)
	}
}

func TestMemberInterface(t *testing.T) {
	tests := map[string]string{
		"PJSIP/101":          "PJSIP/101",
		"PJSIP/101-0000002a": "PJSIP/101",
		"SIP/202-000000ff":   "SIP/202",
		"101":                "PJSIP/101",
	}
	for in, want := range tests {
		if got := MemberInterface(in); got != want {
			t.Errorf("MemberInterface(%q) = %q, want %q", in, got, want)
		}
	}
}
