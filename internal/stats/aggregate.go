// Package stats computes queue service level and abandonment figures from
// live queue summaries and trailing call history.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/types"
)

// DefaultWindowDays is the trailing history window
const DefaultWindowDays = 7

// HistorySource supplies call counts for one queue over [since, until)
type HistorySource interface {
	QueueHistory(ctx context.Context, queue string, since, until time.Time, slThreshold int) (types.QueueHistory, error)
}

// SLACompliance is answered-within-threshold over completed, in percent.
// Zero completed calls yield 0.
func SLACompliance(h types.QueueHistory) float64 {
	if h.Completed <= 0 {
		return 0
	}
	return float64(h.AnsweredWithin) / float64(h.Completed) * 100
}

// AbandonRate is abandoned over completed+abandoned, in percent.
// An empty denominator yields 0.
func AbandonRate(h types.QueueHistory) float64 {
	total := h.Completed + h.Abandoned
	if total <= 0 {
		return 0
	}
	return float64(h.Abandoned) / float64(total) * 100
}

// FromSummary derives history from the switch's own C:/A:/SL% counters
func FromSummary(q status.QueueSummary) types.QueueHistory {
	return types.QueueHistory{
		Completed:      q.Completed,
		Abandoned:      q.Abandoned,
		AnsweredWithin: int(math.Round(q.SLPercent / 100 * float64(q.Completed))),
	}
}

// Aggregate combines a live summary with history. A nil history falls back
// to the switch's counters.
func Aggregate(q status.QueueSummary, history *types.QueueHistory, windowDays int) types.QueueStats {
	h := FromSummary(q)
	if history != nil {
		h = *history
	} else {
		windowDays = 0
	}

	s := types.QueueStats{
		Name:          q.Name,
		CallsWaiting:  q.CallsWaiting,
		LongestWait:   q.LongestWait(),
		AgentsTotal:   len(q.Members),
		Completed:     h.Completed,
		Abandoned:     h.Abandoned,
		SLACompliance: SLACompliance(h),
		AbandonRate:   AbandonRate(h),
		HoldTime:      q.HoldTime,
		TalkTime:      q.TalkTime,
		WindowDays:    windowDays,
	}
	for _, m := range q.Members {
		switch {
		case m.Paused:
			s.AgentsPaused++
		case m.InCall:
			s.AgentsInCall++
		case m.Available:
			s.AgentsReady++
		}
	}
	return s
}

// Display returns a copy rounded to two decimals for presentation.
// Stored figures keep full precision.
func Display(s types.QueueStats) types.QueueStats {
	s.SLACompliance = round2(s.SLACompliance)
	s.AbandonRate = round2(s.AbandonRate)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Window returns the [since, until) bounds of a trailing window ending at now
func Window(now time.Time, days int) (time.Time, time.Time) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour), now
}
