package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetbook/internal/clock"
	"budgetbook/internal/core"
)

func noop(context.Context, core.Date) error { return nil }

func TestNew_RejectsBadTickTime(t *testing.T) {
	if _, err := New(noop, nil, Options{DailyTick: "25:99"}); err == nil {
		t.Fatal("expected error for malformed tick time")
	}
	if _, err := New(nil, nil, Options{DailyTick: "00:01"}); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestNextTick(t *testing.T) {
	s, err := New(noop, nil, Options{DailyTick: "00:01"})
	if err != nil {
		t.Fatal(err)
	}
	loc := time.FixedZone("CET", 3600)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before tick", time.Date(2025, 3, 10, 0, 0, 30, 0, loc), time.Date(2025, 3, 10, 0, 1, 0, 0, loc)},
		{"exactly at tick", time.Date(2025, 3, 10, 0, 1, 0, 0, loc), time.Date(2025, 3, 11, 0, 1, 0, 0, loc)},
		{"afternoon", time.Date(2025, 3, 10, 15, 0, 0, 0, loc), time.Date(2025, 3, 11, 0, 1, 0, 0, loc)},
		{"month end", time.Date(2025, 1, 31, 23, 59, 0, 0, loc), time.Date(2025, 2, 1, 0, 1, 0, 0, loc)},
		{"year end", time.Date(2024, 12, 31, 12, 0, 0, 0, loc), time.Date(2025, 1, 1, 0, 1, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.NextTick(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextTick(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestRunNow_PassesToday(t *testing.T) {
	var got core.Date
	s, err := New(func(_ context.Context, today core.Date) error {
		got = today
		return nil
	}, clock.At(2025, 6, 15), Options{DailyTick: "00:01"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := core.NewDate(2025, 6, 15); !got.Equal(want) {
		t.Errorf("today = %v, want %v", got, want)
	}
}

func TestRunNow_CoalescesOverlappingRuns(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})
	s, err := New(func(context.Context, core.Date) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, nil, Options{DailyTick: "00:01"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.RunNow(context.Background())
	}()
	<-started

	var shared bool
	go func() {
		defer wg.Done()
		shared, _ = s.RunNow(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Errorf("runs = %d, want 1", n)
	}
	if !shared {
		t.Error("second call should have joined the running job")
	}
}

func TestRunNow_ReturnsRunnerError(t *testing.T) {
	boom := errors.New("boom")
	s, _ := New(func(context.Context, core.Date) error { return boom }, nil, Options{DailyTick: "00:01"})
	if _, err := s.RunNow(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestStart_RunsAfterStartupDelay(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(func(context.Context, core.Date) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, nil, Options{DailyTick: "00:01", StartupDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not happen")
	}
	s.Stop()
	s.Stop()
}

func TestStop_BeforeStartupDelay(t *testing.T) {
	var runs int32
	s, _ := New(func(context.Context, core.Date) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, nil, Options{DailyTick: "00:01", StartupDelay: time.Hour})

	s.Start(context.Background())
	s.Stop()
	if n := atomic.LoadInt32(&runs); n != 0 {
		t.Errorf("runs = %d, want 0", n)
	}
}
