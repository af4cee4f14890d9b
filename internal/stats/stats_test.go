package stats

import (
	"context"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/types"
	"pgregory.net/rapid"
)

func TestRates(t *testing.T) {
	tests := []struct {
		name    string
		h       types.QueueHistory
		sla     float64
		abandon float64
	}{
		{"no calls", types.QueueHistory{}, 0, 0},
		{"only abandoned", types.QueueHistory{Abandoned: 4}, 0, 100},
		{"mixed", types.QueueHistory{Completed: 8, Abandoned: 2, AnsweredWithin: 6}, 75, 20},
		{"all within", types.QueueHistory{Completed: 3, AnsweredWithin: 3}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SLACompliance(tt.h); got != tt.sla {
				t.Errorf("SLACompliance() = %v, want %v", got, tt.sla)
			}
			if got := AbandonRate(tt.h); got != tt.abandon {
				t.Errorf("AbandonRate() = %v, want %v", got, tt.abandon)
			}
		})
	}
}

func TestRatesStayInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		completed := rapid.IntRange(0, 10000).Draw(rt, "completed")
		h := types.QueueHistory{
			Completed:      completed,
			Abandoned:      rapid.IntRange(0, 10000).Draw(rt, "abandoned"),
			AnsweredWithin: rapid.IntRange(0, completed).Draw(rt, "within"),
		}
		for _, v := range []float64{SLACompliance(h), AbandonRate(h)} {
			if math.IsNaN(v) || v < 0 || v > 100 {
				rt.Fatalf("rate %v out of range for %+v", v, h)
			}
		}
	})
}

func TestAggregateFallsBackToSummary(t *testing.T) {
	q := status.QueueSummary{
		Name:      "sales",
		Completed: 10,
		Abandoned: 5,
		SLPercent: 70,
		Members: []status.Member{
			{Interface: "PJSIP/101", Available: true, Status: status.StatusAvailable},
			{Interface: "PJSIP/102", Paused: true, InCall: true, Status: status.StatusPaused},
			{Interface: "PJSIP/103", InCall: true, Status: status.StatusInCall},
		},
		Callers: []status.Caller{{Wait: 30}, {Wait: 90}},
	}

	s := Aggregate(q, nil, 7)
	if s.SLACompliance != 70 {
		t.Errorf("expected 70%% SLA from switch counters, got %v", s.SLACompliance)
	}
	if math.Abs(s.AbandonRate-33.333333) > 1e-4 {
		t.Errorf("expected ~33.33%% abandon, got %v", s.AbandonRate)
	}
	if s.WindowDays != 0 {
		t.Errorf("expected no window without history, got %d", s.WindowDays)
	}
	if s.AgentsReady != 1 || s.AgentsPaused != 1 || s.AgentsInCall != 1 || s.AgentsTotal != 3 {
		t.Errorf("unexpected agent counts: %+v", s)
	}
	if s.LongestWait != 90 {
		t.Errorf("expected longest wait 90, got %d", s.LongestWait)
	}

	d := Display(s)
	if d.AbandonRate != 33.33 {
		t.Errorf("expected display rounding to 33.33, got %v", d.AbandonRate)
	}
	if s.AbandonRate == d.AbandonRate {
		t.Error("Display must not modify the original")
	}
}

func TestAggregatePrefersHistory(t *testing.T) {
	q := status.QueueSummary{Name: "sales", Completed: 10, SLPercent: 100}
	h := &types.QueueHistory{Completed: 4, AnsweredWithin: 1, Abandoned: 0}

	s := Aggregate(q, h, 7)
	if s.SLACompliance != 25 || s.Completed != 4 || s.WindowDays != 7 {
		t.Errorf("expected history figures, got %+v", s)
	}
}

type fakeRecords map[string][]types.CallRecord

func (f fakeRecords) GetCallRecords(_ context.Context, dateKey string) ([]types.CallRecord, error) {
	return f[dateKey], nil
}

func TestRecordHistoryWindow(t *testing.T) {
	src := fakeRecords{
		"2026-03-01": {
			{Queue: "sales", WaitTime: 10},
			{Queue: "sales", WaitTime: 45},
			{Queue: "support", WaitTime: 5},
		},
		"2026-03-02": {
			{Queue: "sales", Abandoned: true, WaitTime: 60},
		},
		"2026-02-20": {
			{Queue: "sales", WaitTime: 1},
		},
	}
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	since, until := Window(now, 2)

	h, err := NewRecordHistory(src).QueueHistory(context.Background(), "sales", since, until, 20)
	if err != nil {
		t.Fatal(err)
	}
	want := types.QueueHistory{Completed: 2, Abandoned: 1, AnsweredWithin: 1}
	if h != want {
		t.Errorf("got %+v, want %+v", h, want)
	}
}

func TestRecordHistoryClipsToWindow(t *testing.T) {
	src := fakeRecords{
		"2026-02-28": {
			{Queue: "sales", WaitTime: 5, CompleteTime: "2026-02-28T10:00:00Z"},
			{Queue: "sales", WaitTime: 5, CompleteTime: "2026-02-28T16:00:00Z"},
		},
		"2026-03-02": {
			{Queue: "sales", Abandoned: true, CompleteTime: "2026-03-02T14:59:59Z"},
			{Queue: "sales", WaitTime: 5, CompleteTime: "2026-03-02T15:00:00Z"},
			{Queue: "sales", WaitTime: 90},
		},
	}
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	since, until := Window(now, 2)

	h, err := NewRecordHistory(src).QueueHistory(context.Background(), "sales", since, until, 20)
	if err != nil {
		t.Fatal(err)
	}
	want := types.QueueHistory{Completed: 2, Abandoned: 1, AnsweredWithin: 1}
	if h != want {
		t.Errorf("got %+v, want %+v", h, want)
	}
}

func TestQueueLogCastIsGuarded(t *testing.T) {
	casts := strings.Count(queueLogHistoryQuery, "data1::int")
	guarded := len(regexp.MustCompile(`CASE WHEN data1 ~ '\^\[0-9\]\+\$' THEN data1::int END`).FindAllString(queueLogHistoryQuery, -1))
	if casts == 0 || casts != guarded {
		t.Errorf("%d casts of data1, %d behind a numeric guard", casts, guarded)
	}
}
