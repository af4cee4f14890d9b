package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/callctl/internal/agentstate"
	"github.com/dennisdiepolder/callctl/internal/types"
)

// Pause thresholds
const (
	PauseWarning  = 10 * time.Minute
	PauseCritical = 30 * time.Minute
)

// CheckAgent evaluates alert rules against a reconstructed agent state
func CheckAgent(res agentstate.Result, now time.Time) []types.Alert {
	var alerts []types.Alert

	if res.PauseOpenSince != nil {
		dur := now.Sub(*res.PauseOpenSince)
		switch {
		case dur > PauseCritical:
			alerts = append(alerts, types.Alert{
				Type:     "pause_long",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("Paused for %s", formatDuration(dur)),
				Since:    dur.Seconds(),
			})
		case dur > PauseWarning:
			alerts = append(alerts, types.Alert{
				Type:     "pause_long",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Paused for %s", formatDuration(dur)),
				Since:    dur.Seconds(),
			})
		}
	}

	if res.Drift {
		alerts = append(alerts, types.Alert{
			Type:     "state_drift",
			Severity: types.SeverityWarning,
			Message:  "Recorded status disagrees with the switch",
		})
	}

	return alerts
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
