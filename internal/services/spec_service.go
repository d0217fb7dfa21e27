package services

import (
	"context"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/calendar"
	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

type SpecLifecycleStore interface {
	CreateSpec(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error)
	GetSpec(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error)
	ListSpecs(ctx context.Context, owner core.OwnerID, status core.Status) ([]core.RecurrenceSpec, error)
	UpdateSpec(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error)
	UpdateSpecState(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error)
	DeleteSpec(ctx context.Context, owner core.OwnerID, id int64, cascade bool) ([]core.LedgerEntry, error)
}

// SpecService manages recurrence specs and previews their occurrences.
type SpecService struct {
	store         SpecLifecycleStore
	projector     Projector
	clock         clock.Clock
	events        EventPublisher
	defaultMonths int
	logger        *log.Logger
}

func NewSpecService(store SpecLifecycleStore, projector Projector, clk clock.Clock, events EventPublisher, defaultMonths int) *SpecService {
	return &SpecService{
		store:         store,
		projector:     projector,
		clock:         clk,
		events:        events,
		defaultMonths: defaultMonths,
		logger:        log.Default(log.ComponentMaterializer),
	}
}

// Create stores a new spec. It starts ACTIVE unless PAUSED is requested.
func (s *SpecService) Create(ctx context.Context, spec core.RecurrenceSpec) (core.RecurrenceSpec, error) {
	switch spec.Status {
	case core.StatusUnknown:
		spec.Status = core.StatusActive
	case core.StatusActive, core.StatusPaused:
	default:
		return core.RecurrenceSpec{}, core.NewError(core.KindInvalidSpec, "spec.create",
			fmt.Sprintf("a spec cannot be created %s", spec.Status))
	}
	spec.InstallmentsEmitted = 0
	spec.LastEmittedDate = core.Date{}
	if err := spec.Validate(); err != nil {
		return core.RecurrenceSpec{}, err
	}
	return s.store.CreateSpec(ctx, spec)
}

func (s *SpecService) Get(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	return s.store.GetSpec(ctx, owner, id)
}

// List returns the owner's specs; StatusUnknown lists all of them.
func (s *SpecService) List(ctx context.Context, owner core.OwnerID, status core.Status) ([]core.RecurrenceSpec, error) {
	return s.store.ListSpecs(ctx, owner, status)
}

// Update rewrites the definition of a spec. Counters and status are kept from
// the stored spec; a stale Version yields a Conflict. Cadence and start date
// are frozen after the first emission.
func (s *SpecService) Update(ctx context.Context, spec core.RecurrenceSpec) (core.RecurrenceSpec, error) {
	cur, err := s.store.GetSpec(ctx, spec.OwnerID, spec.ID)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	if cur.Status == core.StatusFinalized {
		return core.RecurrenceSpec{}, core.NewError(core.KindConflict, "spec.update",
			fmt.Sprintf("spec %d is finalized", cur.ID))
	}
	// Occurrence dates are derived from cadence and start date by index, so
	// both are fixed once anything has been emitted.
	if cur.InstallmentsEmitted > 0 &&
		(spec.Cadence != cur.Cadence || !spec.StartDate.Equal(cur.StartDate)) {
		return core.RecurrenceSpec{}, core.NewError(core.KindInvalidSpec, "spec.update",
			fmt.Sprintf("spec %d has emitted %d occurrences; cadence and start date cannot change",
				cur.ID, cur.InstallmentsEmitted))
	}
	if spec.Version == 0 {
		spec.Version = cur.Version
	}
	spec.InstallmentsEmitted = cur.InstallmentsEmitted
	spec.LastEmittedDate = cur.LastEmittedDate
	spec.Status = cur.Status
	if err := spec.Validate(); err != nil {
		return core.RecurrenceSpec{}, err
	}
	return s.store.UpdateSpec(ctx, spec)
}

func (s *SpecService) Pause(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	return s.transition(ctx, owner, id, core.StatusPaused)
}

func (s *SpecService) Resume(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	return s.transition(ctx, owner, id, core.StatusActive)
}

func (s *SpecService) Finalize(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	return s.transition(ctx, owner, id, core.StatusFinalized)
}

func (s *SpecService) transition(ctx context.Context, owner core.OwnerID, id int64, next core.Status) (core.RecurrenceSpec, error) {
	spec, err := s.store.GetSpec(ctx, owner, id)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	if spec.Status, err = spec.Status.Transition(next); err != nil {
		return core.RecurrenceSpec{}, err
	}
	updated, err := s.store.UpdateSpecState(ctx, spec)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	s.logger.InfoContext(ctx, "Spec status changed",
		log.FieldOwnerID, string(owner),
		log.FieldSpecID, id,
		"status", updated.Status.String())
	return updated, nil
}

// Delete removes a spec. With cascade its materialized entries are deleted,
// otherwise they are kept without a spec reference.
func (s *SpecService) Delete(ctx context.Context, owner core.OwnerID, id int64, cascade bool) error {
	removed, err := s.store.DeleteSpec(ctx, owner, id, cascade)
	if err != nil {
		return err
	}
	for _, e := range removed {
		publishEntryEvent(ctx, s.events, s.logger, amqp.EntryDeleted, e)
	}
	return nil
}

// Project previews the occurrences of a spec that are not yet materialized,
// up to until. A zero until uses the default horizon.
func (s *SpecService) Project(ctx context.Context, owner core.OwnerID, id int64, until core.Date) ([]core.Occurrence, error) {
	today := clock.Today(s.clock)
	if until.IsZero() {
		until = calendar.AddMonthsClamped(today, s.defaultMonths)
	}
	if err := s.projector.CheckHorizon(today, until); err != nil {
		return nil, err
	}
	spec, err := s.store.GetSpec(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.projector.Project(spec, until)
	if err != nil {
		return nil, err
	}
	return plan.Occurrences, nil
}
