// Package calendar computes successive occurrence dates for each cadence.
//
// Each cadence has a Stepper that encapsulates its rule. Month-based cadences
// use calendar-aware arithmetic: the target day is clamped to the last day of
// the target month instead of overflowing into the next one.
package calendar

import (
	"time"

	"budgetbook/internal/core"
)

// Stepper encapsulates the rule of one cadence.
type Stepper interface {
	// Next returns the occurrence following from. ok is false when the
	// cadence has no successor.
	Next(from core.Date) (next core.Date, ok bool)
	// Nth returns the n-th successor of anchor (n = 0 is anchor itself).
	Nth(anchor core.Date, n int) (date core.Date, ok bool)
}

// OnceStepper never has a successor.
type OnceStepper struct{}

func (OnceStepper) Next(core.Date) (core.Date, bool) { return core.Date{}, false }

func (OnceStepper) Nth(anchor core.Date, n int) (core.Date, bool) {
	if n != 0 {
		return core.Date{}, false
	}
	return anchor, true
}

// DayStepper advances by a fixed number of calendar days.
type DayStepper struct{ Days int }

func (s DayStepper) Next(from core.Date) (core.Date, bool) {
	return core.Date{Time: from.AddDate(0, 0, s.Days)}, true
}

func (s DayStepper) Nth(anchor core.Date, n int) (core.Date, bool) {
	if n < 0 {
		return core.Date{}, false
	}
	return core.Date{Time: anchor.AddDate(0, 0, n*s.Days)}, true
}

// MonthStepper advances by whole calendar months, clamping the day.
//
// Nth is measured from the anchor, so a series started on the 31st returns to
// the 31st in long months after being clamped in short ones.
type MonthStepper struct{ Months int }

func (s MonthStepper) Next(from core.Date) (core.Date, bool) {
	return AddMonthsClamped(from, s.Months), true
}

func (s MonthStepper) Nth(anchor core.Date, n int) (core.Date, bool) {
	if n < 0 {
		return core.Date{}, false
	}
	return AddMonthsClamped(anchor, n*s.Months), true
}

// steppers maps each cadence to its rule. Biweekly is a 15-day stride, not an
// ISO fortnight.
var steppers = map[core.Cadence]Stepper{
	core.CadenceOnce:       OnceStepper{},
	core.CadenceWeekly:     DayStepper{Days: 7},
	core.CadenceBiweekly:   DayStepper{Days: 15},
	core.CadenceMonthly:    MonthStepper{Months: 1},
	core.CadenceQuarterly:  MonthStepper{Months: 3},
	core.CadenceSemiannual: MonthStepper{Months: 6},
	core.CadenceAnnual:     MonthStepper{Months: 12},
}

// StepperFor returns the rule for a cadence.
func StepperFor(c core.Cadence) (Stepper, bool) {
	s, ok := steppers[c]
	return s, ok
}

// NextOccurrence returns the next occurrence of cadence after from.
func NextOccurrence(c core.Cadence, from core.Date) (core.Date, bool) {
	s, ok := steppers[c]
	if !ok {
		return core.Date{}, false
	}
	return s.Next(from)
}

// OccurrenceAt returns the date of the 1-based occurrence index of a series
// starting at start.
func OccurrenceAt(c core.Cadence, start core.Date, index int) (core.Date, bool) {
	s, ok := steppers[c]
	if !ok || index < 1 {
		return core.Date{}, false
	}
	return s.Nth(start, index-1)
}

// AddMonthsClamped adds n calendar months to d. When the target month is
// shorter than d's day, the result is the last day of the target month.
func AddMonthsClamped(d core.Date, n int) core.Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := DaysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return core.Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
