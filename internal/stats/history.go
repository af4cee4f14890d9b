package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dennisdiepolder/callctl/internal/types"
)

// queueLogHistoryQuery counts completed, abandoned and in-SL answered calls.
// data1 is free text; every cast of it stays inside a CASE guard.
const queueLogHistoryQuery = `
SELECT
  COUNT(*) FILTER (WHERE event IN ('COMPLETEAGENT', 'COMPLETECALLER')),
  COUNT(*) FILTER (WHERE event IN ('ABANDON', 'EXITWITHTIMEOUT')),
  COUNT(*) FILTER (WHERE event = 'CONNECT' AND CASE WHEN data1 ~ '^[0-9]+$' THEN data1::int END <= $4)
  FROM queue_log
 WHERE queuename = $1
   AND time >= $2 AND time < $3
`

// PostgresHistory counts calls from the switch's queue_log table
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory { return &PostgresHistory{db: db} }

func (h *PostgresHistory) QueueHistory(ctx context.Context, queue string, since, until time.Time, slThreshold int) (types.QueueHistory, error) {
	var out types.QueueHistory
	err := h.db.QueryRowContext(ctx, queueLogHistoryQuery, queue, since, until, slThreshold).Scan(&out.Completed, &out.Abandoned, &out.AnsweredWithin)
	if err != nil {
		return types.QueueHistory{}, fmt.Errorf("failed to query queue_log: %w", err)
	}
	return out, nil
}

// CallRecordSource returns one day of finished calls
type CallRecordSource interface {
	GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error)
}

// RecordHistory folds day-partitioned call records, e.g. from DynamoDB.
// Records carrying a completion time are clipped to [since, until); older
// records without one count for their whole day.
type RecordHistory struct {
	source CallRecordSource
}

func NewRecordHistory(source CallRecordSource) *RecordHistory {
	return &RecordHistory{source: source}
}

func (h *RecordHistory) QueueHistory(ctx context.Context, queue string, since, until time.Time, slThreshold int) (types.QueueHistory, error) {
	tally := NewTally(slThreshold)
	for day := since.UTC().Truncate(24 * time.Hour); day.Before(until); day = day.Add(24 * time.Hour) {
		records, err := h.source.GetCallRecords(ctx, types.DateKey(day))
		if err != nil {
			return types.QueueHistory{}, err
		}
		for _, r := range records {
			if r.Queue == queue && inWindow(r, since, until) {
				tally.RecordCall(r)
			}
		}
	}
	return tally.History(), nil
}

func inWindow(r types.CallRecord, since, until time.Time) bool {
	if r.CompleteTime == "" {
		return true
	}
	at, err := time.Parse(time.RFC3339, r.CompleteTime)
	if err != nil {
		return true
	}
	return !at.Before(since) && at.Before(until)
}
