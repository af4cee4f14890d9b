package asterisk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/asterisk/asterisktest"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestClient(r Runner, timeout time.Duration) *Client {
	return NewClient(r, timeout, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
}

func TestAddMember(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{"added", "Added interface 'PJSIP/101' to queue 'sales'", false},
		{"already there", "Unable to add interface 'PJSIP/101' to queue 'sales': Already there", false},
		{"no such queue", "Unable to add interface to queue 'nope': No such queue", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := asterisktest.NewRunner().On("queue add member", tt.reply)
			c := newTestClient(r, time.Second)

			err := c.AddMember(context.Background(), "PJSIP/101", "sales", 2, false, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("AddMember() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, apperr.ErrCommand) {
				t.Errorf("expected command failure, got %v", err)
			}
			cmds := r.Commands()
			if len(cmds) != 1 || cmds[0] != "queue add member PJSIP/101 to sales penalty 2 paused 0" {
				t.Errorf("unexpected commands: %v", cmds)
			}
		})
	}
}

func TestPauseMemberDistinguishesUnpause(t *testing.T) {
	r := asterisktest.NewRunner().
		On("queue pause member", "paused interface 'PJSIP/101' in queue 'sales' for reason 'Lunch'").
		On("queue unpause member", "unpaused interface 'PJSIP/101' in queue 'sales'")
	c := newTestClient(r, time.Second)

	if err := c.PauseMember(context.Background(), "PJSIP/101", "sales", "Lunch", true); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := c.PauseMember(context.Background(), "PJSIP/101", "sales", "", false); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}

	// an unpause reply must not satisfy a pause request
	r.On("queue pause member", "unpaused interface 'PJSIP/101' in queue 'sales'")
	if err := c.PauseMember(context.Background(), "PJSIP/101", "sales", "Lunch", true); err == nil {
		t.Error("expected pause to fail on an unpause reply")
	}

	cmds := r.Commands()
	if cmds[0] != "queue pause member PJSIP/101 queue sales reason Lunch" {
		t.Errorf("unexpected pause command %q", cmds[0])
	}
}

func TestTimeoutIsCommandFailure(t *testing.T) {
	r := asterisktest.NewRunner()
	r.Block = true
	c := newTestClient(r, 20*time.Millisecond)

	_, err := c.QueueShow(context.Background(), "")
	if !errors.Is(err, apperr.ErrCommand) {
		t.Fatalf("expected command failure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
	if len(r.Commands()) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(r.Commands()))
	}
}

func TestReloadFailureKind(t *testing.T) {
	r := asterisktest.NewRunner().On("module reload", "The module is not currently loaded")
	c := newTestClient(r, time.Second)

	err := c.Reload(context.Background(), "pbx_config.so")
	if !errors.Is(err, apperr.ErrReload) {
		t.Fatalf("expected reload failure, got %v", err)
	}

	r.On("module reload", "Module 'pbx_config.so' reloaded successfully.")
	if err := c.Reload(context.Background(), "pbx_config.so"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHangupRequiresToken(t *testing.T) {
	r := asterisktest.NewRunner().On("channel request hangup", "PJSIP/101-00000001 is not a known channel")
	c := newTestClient(r, time.Second)

	if err := c.Hangup(context.Background(), "PJSIP/101-00000001"); err == nil {
		t.Error("expected hangup to fail")
	}
}

func TestAddMemberStartsPaused(t *testing.T) {
	r := asterisktest.NewRunner().On("queue add member", "Added interface 'PJSIP/104' to queue 'sales'")
	c := newTestClient(r, time.Second)

	if err := c.AddMember(context.Background(), "PJSIP/104", "sales", 0, true, "Dana"); err != nil {
		t.Fatal(err)
	}
	cmds := r.Commands()
	if len(cmds) != 1 || cmds[0] != `queue add member PJSIP/104 to sales penalty 0 paused 1 as Dana` {
		t.Errorf("unexpected commands: %v", cmds)
	}
}
