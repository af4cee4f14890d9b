// Package agentstate rebuilds login, pause and available time from an
// agent's event stream.
package agentstate

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/callctl/internal/types"
)

// Live is what the switch currently reports for the agent
type Live struct {
	Known    bool // false when the switch could not be asked
	LoggedIn bool
	Paused   bool
}

// Result is the reconstructed state at a given instant
type Result struct {
	types.AgentTimes
	LoginOpenSince *time.Time
	PauseOpenSince *time.Time
	// Drift is set when the switch disagrees with the stream
	Drift bool
	// CarriedOver is set when the login was opened at the start of the day
	// for an agent still logged in from a previous one
	CarriedOver bool
}

// Reconstruct walks events once in timestamp order (ties keep input order).
//
// LOGIN opens a login interval and is idempotent while one is open. LOGOUT
// closes it along with any open pause; a LOGOUT with nothing open adds
// nothing. PAUSE only opens while logged in, so pause time never exceeds
// login time. Events stamped after now have not happened yet and are
// ignored; intervals still open are closed at now.
//
// A stream that opens with PAUSE or UNPAUSE while the switch reports the
// agent logged in belongs to a login from an earlier day. That login is
// taken to start at midnight UTC of the first event's day.
func Reconstruct(events []types.AgentEvent, now time.Time, live Live) Result {
	sorted := make([]types.AgentEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var (
		login, pause float64
		loginOpen    *time.Time
		pauseOpen    *time.Time
		carried      bool
	)

	if len(sorted) > 0 && !sorted[0].Timestamp.After(now) && live.Known && live.LoggedIn {
		first := sorted[0]
		if first.Kind == types.EventPause || first.Kind == types.EventUnpause {
			ts := first.Timestamp.UTC()
			midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
			loginOpen = &midnight
			carried = true
		}
	}

	for _, e := range sorted {
		ts := e.Timestamp
		if ts.After(now) {
			break
		}
		switch e.Kind {
		case types.EventLogin:
			if loginOpen == nil {
				loginOpen = &ts
			}
		case types.EventLogout:
			if loginOpen == nil {
				continue
			}
			if pauseOpen != nil {
				pause += span(*pauseOpen, ts)
				pauseOpen = nil
			}
			login += span(*loginOpen, ts)
			loginOpen = nil
		case types.EventPause:
			if loginOpen != nil && pauseOpen == nil {
				pauseOpen = &ts
			}
		case types.EventUnpause:
			if pauseOpen != nil {
				pause += span(*pauseOpen, ts)
				pauseOpen = nil
			}
		}
	}

	if loginOpen != nil {
		login += span(*loginOpen, now)
	}
	if pauseOpen != nil {
		pause += span(*pauseOpen, now)
	}

	available := login - pause
	if available < 0 {
		available = 0
	}

	r := Result{
		AgentTimes: types.AgentTimes{
			LoginSeconds:     login,
			PauseSeconds:     pause,
			AvailableSeconds: available,
			LoggedIn:         loginOpen != nil,
			Paused:           pauseOpen != nil,
		},
		LoginOpenSince: loginOpen,
		PauseOpenSince: pauseOpen,
		CarriedOver:    carried,
	}
	if live.Known {
		r.Drift = live.LoggedIn != r.LoggedIn || live.Paused != r.Paused
	}
	return r
}

// span is b-a in seconds, never negative
func span(a, b time.Time) float64 {
	d := b.Sub(a).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
