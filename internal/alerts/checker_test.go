package alerts

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/agentstate"
	"github.com/dennisdiepolder/callctl/internal/types"
)

func TestCheckAgent(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	since := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		res      agentstate.Result
		want     []string
		severity types.AlertSeverity
	}{
		{"not paused", agentstate.Result{}, nil, ""},
		{"short pause", agentstate.Result{PauseOpenSince: since(5 * time.Minute)}, nil, ""},
		{"long pause", agentstate.Result{PauseOpenSince: since(12 * time.Minute)}, []string{"pause_long"}, types.SeverityWarning},
		{"very long pause", agentstate.Result{PauseOpenSince: since(95 * time.Minute)}, []string{"pause_long"}, types.SeverityCritical},
		{"drift", agentstate.Result{Drift: true}, []string{"state_drift"}, types.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckAgent(tt.res, now)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d alerts, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, a := range got {
				if a.Type != tt.want[i] || a.Severity != tt.severity {
					t.Errorf("alert %d = %+v", i, a)
				}
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		90 * time.Second: "1m30s",
		95 * time.Minute: "1h35m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
