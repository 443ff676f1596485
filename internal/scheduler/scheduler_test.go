package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "hourlypics/pkg/logx"
)

func TestParseTrigger(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 3, 1, 10, 20, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		next time.Time
		err  bool
	}{
		{raw: "15 * * * *", next: time.Date(2024, 3, 1, 11, 15, 0, 0, time.UTC)},
		{raw: "30 15 * * * *", next: time.Date(2024, 3, 1, 11, 15, 30, 0, time.UTC)},
		{raw: "@hourly", next: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)},
		{raw: "cron:0 9 * * *", next: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
		{raw: "@every 45m", next: from.Add(45 * time.Minute)},
		{raw: "", err: true},
		{raw: "cron:", err: true},
		{raw: "45m", err: true},
		{raw: "61 * * * *", err: true},
		{raw: "nonsense", err: true},
	}
	for _, tc := range tests {
		tr, err := ParseTrigger(tc.raw)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if got := tr.Next(from); !got.Equal(tc.next) {
			t.Fatalf("%q: next=%v want %v", tc.raw, got, tc.next)
		}
	}
}

func TestHourlyAtFiresOncePerHour(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 20, 0, 0, time.UTC)
	c := New(time.UTC, logx.Nop())
	c.SetNow(func() time.Time { return start })
	if err := c.Add("post", HourlyAt(15), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}

	next, ok := c.Next()
	want := time.Date(2024, 3, 1, 11, 15, 0, 0, time.UTC)
	if !ok || !next.Equal(want) {
		t.Fatalf("next=%v ok=%v want %v", next, ok, want)
	}

	if due := c.Due(want.Add(-time.Second)); len(due) != 0 {
		t.Fatalf("expected nothing due before trigger, got %d", len(due))
	}
	due := c.Due(want)
	if len(due) != 1 || due[0].Name != "post" || !due[0].At.Equal(want) {
		t.Fatalf("unexpected due: %+v", due)
	}
	if due := c.Due(want.Add(30 * time.Second)); len(due) != 0 {
		t.Fatalf("fired twice in the same hour")
	}
	next, _ = c.Next()
	if !next.Equal(want.Add(time.Hour)) {
		t.Fatalf("next=%v want %v", next, want.Add(time.Hour))
	}
}

func TestDueCollapsesMissedTriggers(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := New(time.UTC, logx.Nop())
	c.SetNow(func() time.Time { return start })
	_ = c.Add("post", HourlyAt(5), func(context.Context) error { return nil })

	late := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)
	if due := c.Due(late); len(due) != 1 {
		t.Fatalf("expected one collapsed run, got %d", len(due))
	}
	next, _ := c.Next()
	if want := time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next=%v want %v", next, want)
	}
}

func TestAddRejectsDuplicatesAndBadSpecs(t *testing.T) {
	t.Parallel()

	c := New(time.UTC, logx.Nop())
	noop := func(context.Context) error { return nil }
	if err := c.Add("a", "5 * * * *", noop); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add("a", "6 * * * *", noop); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := c.Add("b", "61 * * * *", noop); err == nil {
		t.Fatalf("expected cron error")
	}
	if err := c.Add("", "5 * * * *", noop); err == nil {
		t.Fatalf("expected name error")
	}
	if got := c.Entries(); len(got) != 1 || got[0].Name != "a" || got[0].Spec != "5 * * * *" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestClearDropsAllJobs(t *testing.T) {
	t.Parallel()

	c := New(time.UTC, logx.Nop())
	_ = c.Add("a", "5 * * * *", func(context.Context) error { return nil })
	c.Clear()
	if _, ok := c.Next(); ok {
		t.Fatalf("expected no upcoming triggers")
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("expected no entries")
	}
}

func TestRunSurvivesJobErrorsAndPanics(t *testing.T) {
	t.Parallel()

	var now atomic.Int64
	base := time.Date(2024, 3, 1, 10, 4, 59, 0, time.UTC)
	now.Store(base.UnixNano())

	c := New(time.UTC, logx.Nop())
	c.SetNow(func() time.Time { return time.Unix(0, now.Load()).UTC() })

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = c.Add("boom", HourlyAt(5), func(context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("first")
		case 2:
			return errors.New("second")
		default:
			cancel()
			return nil
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 5*time.Millisecond) }()

	for i := 1; i <= 3; i++ {
		now.Store(base.Add(time.Duration(i) * time.Hour).UnixNano())
		deadline := time.Now().Add(2 * time.Second)
		for calls.Load() < int32(i) {
			if time.Now().After(deadline) {
				t.Fatalf("job run %d did not happen", i)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
