package status

import "strings"

// statusClass ranks a parenthesized status group; lower wins
type statusClass int

const (
	classPaused statusClass = iota
	classInCall
	classIdle
	classUnavailable
	classNone
)

// Exact group text per class. Groups are compared whole, so
// "not in use" can never be mistaken for "in use".
var statusTable = map[string]statusClass{
	"in use":      classInCall,
	"in call":     classInCall,
	"ringing":     classInCall,
	"ring+inuse":  classInCall,
	"busy":        classInCall,
	"on hold":     classInCall,
	"not in use":  classIdle,
	"unavailable": classUnavailable,
	"invalid":     classUnavailable,
	"unknown":     classUnavailable,
}

var classStatus = map[statusClass]MemberStatus{
	classPaused:      StatusPaused,
	classInCall:      StatusInCall,
	classIdle:        StatusAvailable,
	classUnavailable: StatusUnavailable,
	classNone:        StatusUnknown,
}

// classify resolves the member's status from every group on its line.
// Precedence: paused > in use/ringing > not in use > unavailable.
func classify(m *Member, groups []string) {
	best := classNone
	for _, g := range groups {
		lower := strings.ToLower(g)

		if lower == "dynamic" || lower == "realtime" {
			m.Dynamic = true
			continue
		}

		class, ok := statusTable[lower]
		if !ok && strings.HasPrefix(lower, "paused") {
			class, ok = classPaused, true
			m.PauseReason = pauseReason(g)
		}
		if !ok {
			continue
		}

		if class < best {
			best = class
			m.RawStatus = g
		}
	}

	// Flags follow the winning class only; a member is never paused and in call at once.
	m.Status = classStatus[best]
	m.Paused = best == classPaused
	m.InCall = best == classInCall
	m.Available = best == classIdle
}

// pauseReason extracts "Lunch" from "paused:Lunch was 300 secs ago"
func pauseReason(group string) string {
	i := strings.Index(group, ":")
	if i < 0 {
		return ""
	}
	reason := group[i+1:]
	if j := strings.Index(reason, " was "); j >= 0 {
		reason = reason[:j]
	}
	return strings.TrimSpace(reason)
}
