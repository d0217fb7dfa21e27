// Package scheduler drives the materialization job: once shortly after
// process start, then every day at a fixed local wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetbook/internal/clock"
	"budgetbook/internal/config"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

// Runner performs one materialization pass up to today.
type Runner func(ctx context.Context, today core.Date) error

type Options struct {
	DailyTick    string // HH:MM local time
	StartupDelay time.Duration
}

type Scheduler struct {
	run          Runner
	clock        clock.Clock
	hour, minute int
	startupDelay time.Duration

	group  singleflight.Group
	logger *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(run Runner, clk clock.Clock, opts Options) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("scheduler: nil runner")
	}
	if clk == nil {
		clk = clock.System{}
	}
	hour, minute, err := config.ParseTickTime(opts.DailyTick)
	if err != nil {
		return nil, err
	}
	if opts.StartupDelay < 0 {
		opts.StartupDelay = 0
	}
	return &Scheduler{
		run:          run,
		clock:        clk,
		hour:         hour,
		minute:       minute,
		startupDelay: opts.StartupDelay,
		logger:       log.Default(log.ComponentScheduler),
	}, nil
}

// NextTick returns the first daily tick strictly after now, in now's location.
func (s *Scheduler) NextTick(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, s.hour, s.minute, 0, 0, now.Location())
	}
	return next
}

// Start launches the timer loop. It returns immediately; calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.InfoContext(ctx, "Scheduler started",
		"startup_delay", s.startupDelay.String(),
		"daily_tick", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.UTC).Format("15:04"))
}

// Stop cancels the loop and waits for an in-flight run to reach its spec boundary.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Wait blocks until the loop exits.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.startupDelay)
	defer timer.Stop()

	trigger := "startup"
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.logger.InfoContext(ctx, "Materialization tick", "trigger", trigger)
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "Materialization run failed",
				log.NewFields().WithError(err).WithOperation(log.OpMaterialize).ToSlice()...)
		}
		trigger = "daily"

		now := s.clock.Now()
		next := s.NextTick(now)
		timer.Reset(next.Sub(now))
		s.logger.DebugContext(ctx, "Next materialization tick", "at", next.Format(time.RFC3339))
	}
}

// RunNow runs the job immediately. Overlapping calls share one run; shared
// reports whether this call joined a run already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (shared bool, err error) {
	_, err, shared = s.group.Do("materialize", func() (any, error) {
		return nil, s.run(ctx, clock.Today(s.clock))
	})
	return shared, err
}
