package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/lock"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return New(store, lock.NewMemoryLocker(), metrics.New(prometheus.NewRegistry()), zerolog.Nop())
}

func TestAppendAndRead(t *testing.T) {
	l := newTestLedger(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if _, err := l.Append(ctx, "101", "sales", types.EventLogin, ""); err != nil {
		t.Fatal(err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := l.Append(ctx, "101", "sales", types.EventPause, "Lunch"); err != nil {
		t.Fatal(err)
	}

	events, err := l.Events(ctx, "101", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[1].Reason != "Lunch" || events[0].ID == "" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append(context.Background(), "101", "", types.AgentEventKind("BREAK"), "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestClockStepBackKeepsOrder(t *testing.T) {
	l := newTestLedger(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	first, _ := l.Append(ctx, "101", "", types.EventLogin, "")
	now = now.Add(-time.Minute)
	second, _ := l.Append(ctx, "101", "", types.EventPause, "")

	if second.Timestamp.Before(first.Timestamp) {
		t.Errorf("second stamp %v precedes first %v", second.Timestamp, first.Timestamp)
	}
}

func TestConcurrentAppendsTotallyOrdered(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := types.EventPause
			if i%2 == 0 {
				kind = types.EventUnpause
			}
			if _, err := l.Append(ctx, "202", "", kind, ""); err != nil {
				t.Errorf("append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	events, err := l.Events(ctx, "202", types.DateKey(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 40 {
		t.Fatalf("expected 40 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("events out of order at %d", i)
		}
	}
}

func TestAppendAfterFailedCommandWritesNothing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	rejected := errors.New("switch said no")

	_, err := l.AppendAfter(ctx, "101", "", types.EventPause, "", func(context.Context) error { return rejected })
	if !errors.Is(err, rejected) {
		t.Fatalf("expected command error, got %v", err)
	}
	events, err := l.Events(ctx, "101", types.DateKey(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestAppendAfterKeepsSwitchOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var mu sync.Mutex
	var applied []types.AgentEventKind

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := types.EventPause
			if i%2 == 0 {
				kind = types.EventUnpause
			}
			_, err := l.AppendAfter(ctx, "303", "", kind, "", func(context.Context) error {
				time.Sleep(time.Millisecond)
				mu.Lock()
				applied = append(applied, kind)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	events, err := l.Events(ctx, "303", types.DateKey(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != len(applied) {
		t.Fatalf("expected %d events, got %d", len(applied), len(events))
	}
	for i, e := range events {
		if e.Kind != applied[i] {
			t.Fatalf("event %d is %s, switch applied %s", i, e.Kind, applied[i])
		}
	}
}
