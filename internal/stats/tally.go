package stats

import "github.com/dennisdiepolder/callctl/internal/types"

// Tally folds individual calls into a queue history
type Tally struct {
	ThresholdSecs int // service level threshold in seconds
	history       types.QueueHistory
}

// NewTally creates a tally for the given SL threshold
func NewTally(thresholdSecs int) *Tally {
	return &Tally{ThresholdSecs: thresholdSecs}
}

// RecordAnswer records a completed call and how long it waited
func (t *Tally) RecordAnswer(waitTimeSecs float64) {
	t.history.Completed++
	if waitTimeSecs <= float64(t.ThresholdSecs) {
		t.history.AnsweredWithin++
	}
}

// RecordAbandon records a caller who hung up or timed out
func (t *Tally) RecordAbandon() {
	t.history.Abandoned++
}

// RecordCall dispatches a stored call record
func (t *Tally) RecordCall(r types.CallRecord) {
	if r.Abandoned {
		t.RecordAbandon()
		return
	}
	t.RecordAnswer(r.WaitTime)
}

// History returns the accumulated counts
func (t *Tally) History() types.QueueHistory {
	return t.history
}
