// Package ledger appends agent events one writer at a time per agent.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/lock"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger is the single entry point for writing agent streams
type Ledger struct {
	store   storage.Store
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // per agent, keeps stamps non-decreasing
}

// New creates a ledger over store, serializing appends with locker
func New(store storage.Store, locker lock.Locker, m *metrics.Metrics, logger zerolog.Logger) *Ledger {
	if m == nil {
		m = metrics.Get()
	}
	return &Ledger{
		store:   store,
		locker:  locker,
		metrics: m,
		logger:  logger.With().Str("component", "ledger").Logger(),
		now:     time.Now,
		last:    make(map[string]time.Time),
	}
}

// SetClock replaces the time source
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// WithAgentLock runs fn while holding the agent's append lock
func (l *Ledger) WithAgentLock(ctx context.Context, agent string, fn func(ts time.Time) error) error {
	unlock, err := l.lockAgent(ctx, agent)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(l.stamp(agent))
}

func (l *Ledger) lockAgent(ctx context.Context, agent string) (func(), error) {
	if err := storage.ValidAgentKey(agent); err != nil {
		return nil, err
	}
	return l.locker.Lock(ctx, "agent:"+agent)
}

// stamp returns the append time for agent, never earlier than its previous one
func (l *Ledger) stamp(agent string) time.Time {
	ts := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[agent]; ok && ts.Before(prev) {
		ts = prev
	}
	l.last[agent] = ts
	return ts
}

// Append writes one event to the agent's stream for today
func (l *Ledger) Append(ctx context.Context, agent, queue string, kind types.AgentEventKind, reason string) (types.AgentEvent, error) {
	return l.AppendAfter(ctx, agent, queue, kind, reason, nil)
}

// AppendAfter runs command under the agent's lock and appends the event only
// when command succeeds. Two changes for one agent therefore reach the switch
// and the stream in the same order. A nil command appends unconditionally.
func (l *Ledger) AppendAfter(ctx context.Context, agent, queue string, kind types.AgentEventKind, reason string, command func(ctx context.Context) error) (types.AgentEvent, error) {
	if !kind.Valid() {
		return types.AgentEvent{}, apperr.Validation("append", "unknown event kind %q", kind)
	}

	unlock, err := l.lockAgent(ctx, agent)
	if err != nil {
		return types.AgentEvent{}, err
	}
	defer unlock()

	if command != nil {
		if err := command(ctx); err != nil {
			return types.AgentEvent{}, err
		}
	}

	event := types.AgentEvent{
		ID:        uuid.NewString(),
		Agent:     agent,
		Queue:     queue,
		Timestamp: l.stamp(agent),
		Kind:      kind,
		Reason:    reason,
	}
	if err := l.store.AppendAgentEvent(ctx, event); err != nil {
		return types.AgentEvent{}, fmt.Errorf("failed to append agent event: %w", err)
	}

	l.metrics.RecordLedgerAppend(string(kind))
	l.logger.Info().
		Str("agent", agent).
		Str("kind", string(kind)).
		Str("queue", queue).
		Str("reason", reason).
		Msg("agent event appended")
	return event, nil
}

// Events returns the agent's stream for date in timestamp order
func (l *Ledger) Events(ctx context.Context, agent, date string) ([]types.AgentEvent, error) {
	if err := storage.ValidAgentKey(agent); err != nil {
		return nil, err
	}
	if err := storage.ValidDate(date); err != nil {
		return nil, err
	}
	events, err := l.store.AgentEvents(ctx, agent, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent events: %w", err)
	}
	return events, nil
}

// Store exposes the backing store for wrap-ups and audit entries
func (l *Ledger) Store() storage.Store {
	return l.store
}
