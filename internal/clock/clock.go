// Package clock is the time source used by the scheduler, projector and
// report aggregator.
package clock

import (
	"sync"
	"time"

	"budgetbook/internal/core"
)

// Clock returns the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System reads the real clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Today returns the calendar day of c.Now() in the clock's local zone.
func Today(c Clock) core.Date {
	return core.DateOf(c.Now())
}

// Fixed is a settable clock for tests. It never moves backwards.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// At returns a Fixed clock set to noon UTC of the given day.
func At(year, month, day int) *Fixed {
	return NewFixed(time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC))
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t; earlier times are ignored.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.After(f.now) {
		f.now = t
	}
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
}
