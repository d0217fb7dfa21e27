package services

import (
	"fmt"

	"budgetbook/internal/calendar"
	"budgetbook/internal/core"
)

// DefaultMaxIterations bounds a single projection run.
const DefaultMaxIterations = 1000

// Plan is the result of projecting one spec up to a horizon: the occurrences
// that fall due and the spec state after emitting all of them.
type Plan struct {
	Occurrences []core.Occurrence
	Final       core.RecurrenceSpec
	// Truncated is set when the iteration cap stopped the run before the horizon.
	Truncated bool
}

// Finalized reports whether the plan moves the spec to FINALIZED.
func (p Plan) Finalized() bool {
	return p.Final.Status == core.StatusFinalized
}

// Projector turns a recurrence spec into occurrences. It never touches
// storage; the recurring processor persists a plan one occurrence at a time
// and the report aggregator only reads it.
type Projector struct {
	MaxIterations    int
	MaxHorizonMonths int
}

func NewProjector(maxIterations, maxHorizonMonths int) Projector {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return Projector{MaxIterations: maxIterations, MaxHorizonMonths: maxHorizonMonths}
}

// CheckHorizon fails with HorizonExceeded when until lies more than the
// configured number of months after today.
func (p Projector) CheckHorizon(today, until core.Date) error {
	if p.MaxHorizonMonths <= 0 {
		return nil
	}
	if n := core.MonthsBetween(today, until); n > p.MaxHorizonMonths {
		return core.NewError(core.KindHorizonExceeded, "projector.horizon",
			fmt.Sprintf("horizon of %d months exceeds maximum of %d", n, p.MaxHorizonMonths))
	}
	return nil
}

// Project returns the un-emitted occurrences of spec dated on or before
// horizon (and its end date), in date order.
func (p Projector) Project(spec core.RecurrenceSpec, horizon core.Date) (Plan, error) {
	const op = "projector.project"
	plan := Plan{Final: spec}

	if spec.Status != core.StatusActive {
		return plan, nil
	}
	if err := spec.CheckCounters(); err != nil {
		return plan, err
	}
	if !spec.Cadence.IsValid() {
		return plan, core.NewError(core.KindInvalidSpec, op, fmt.Sprintf("spec %d has no cadence", spec.ID))
	}
	if spec.StartDate.IsZero() {
		if spec.Cadence == core.CadenceOnce {
			return plan, nil
		}
		return plan, core.NewError(core.KindInvalidSpec, op, fmt.Sprintf("spec %d has no start date", spec.ID))
	}

	final := &plan.Final
	if final.Exhausted() {
		final.Status = core.StatusFinalized
		return plan, nil
	}

	limit := horizon
	if !spec.EndDate.IsZero() && spec.EndDate.Before(limit) {
		limit = spec.EndDate
	}

	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	for i := 0; ; i++ {
		if i == maxIter {
			plan.Truncated = true
			break
		}
		idx := final.InstallmentsEmitted + 1
		d, ok := calendar.OccurrenceAt(spec.Cadence, spec.StartDate, idx)
		if !ok {
			// ONCE after its single occurrence
			final.Status = core.StatusFinalized
			break
		}
		if d.After(limit) {
			if !spec.EndDate.IsZero() && d.After(spec.EndDate) && !horizon.Before(spec.EndDate) {
				final.Status = core.StatusFinalized
			}
			break
		}

		plan.Occurrences = append(plan.Occurrences, core.Occurrence{
			SpecID:      spec.ID,
			Index:       idx,
			Date:        d,
			Description: InstallmentDescription(spec, idx),
			Amount:      spec.Amount,
			Kind:        spec.Kind,
			CategoryID:  spec.CategoryID,
			AccountID:   spec.AccountID,
		})
		final.InstallmentsEmitted = idx
		final.LastEmittedDate = d
		if final.Exhausted() {
			final.Status = core.StatusFinalized
			break
		}
	}
	return plan, nil
}

// InstallmentDescription renders the description of occurrence index of spec.
// Bounded specs get an "N/TOTAL" suffix.
func InstallmentDescription(spec core.RecurrenceSpec, index int) string {
	if spec.TotalInstallments == nil {
		return spec.Description
	}
	return fmt.Sprintf("%s%s%d/%d", spec.Description, installmentSep, index, *spec.TotalInstallments)
}

const installmentSep = " — "
