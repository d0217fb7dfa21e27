package services

import (
	"context"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

// EventPublisher publishes entry events. *amqp.Client implements it.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, ev *amqp.EntryEvent) error
}

// SpecStore is the slice of the ledger store the recurring processor needs.
type SpecStore interface {
	ListAllActiveSpecRefs(ctx context.Context) ([]storage.SpecRef, error)
	GetSpec(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error)
	MaterializeOccurrence(ctx context.Context, owner core.OwnerID, occ core.Occurrence) (core.LedgerEntry, core.RecurrenceSpec, error)
	UpdateSpecState(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error)
}

// RecurringProcessor materializes due occurrences of ACTIVE specs.
type RecurringProcessor struct {
	store     SpecStore
	projector Projector
	events    EventPublisher
	logger    *log.Logger
}

// NewRecurringProcessor creates a processor. events may be nil.
func NewRecurringProcessor(store SpecStore, projector Projector, events EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		projector: projector,
		events:    events,
		logger:    log.Default(log.ComponentMaterializer),
	}
}

// SpecResult is the outcome of materializing one spec.
type SpecResult struct {
	SpecID    int64
	Emitted   []core.LedgerEntry
	Finalized bool
}

// RunSummary totals one materialization run across all specs.
type RunSummary struct {
	Specs     int
	Emitted   int
	Finalized int
	Failed    int
}

// MaterializeAll catches every ACTIVE spec of every owner up to today.
//
// Specs are independent: a failure is logged and the run continues with the
// next spec. Once ctx is cancelled no further spec is started, but the spec
// in progress runs to completion.
func (p *RecurringProcessor) MaterializeAll(ctx context.Context, today core.Date) (RunSummary, error) {
	var sum RunSummary
	if p.store == nil {
		return sum, fmt.Errorf("processor not properly initialized")
	}

	refs, err := p.store.ListAllActiveSpecRefs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list active specs: %w", err)
	}

	p.logger.InfoContext(ctx, "Materializing recurring specs",
		"active_specs", len(refs),
		"today", today.String())

	for _, ref := range refs {
		if ctx.Err() != nil {
			p.logger.WarnContext(ctx, "Materialization interrupted", "remaining", len(refs)-sum.Specs)
			break
		}
		sum.Specs++

		res, err := p.MaterializeSpec(context.WithoutCancel(ctx), ref.OwnerID, ref.ID, today)
		sum.Emitted += len(res.Emitted)
		if res.Finalized {
			sum.Finalized++
		}
		if err != nil {
			sum.Failed++
			p.logger.ErrorContext(ctx, "Failed to materialize spec",
				append(log.NewFields().WithOwner(ref.OwnerID).WithError(err).
					WithOperation(log.OpMaterialize).ToSlice(), log.FieldSpecID, ref.ID)...,
			)
			continue
		}
	}

	p.logger.InfoContext(ctx, "Materialization complete",
		"specs", sum.Specs,
		"emitted", sum.Emitted,
		"finalized", sum.Finalized,
		"failed", sum.Failed)

	return sum, ctx.Err()
}

// MaterializeSpec persists every occurrence of one spec dated on or before
// today. Each occurrence is its own transaction, so progress made before a
// failure is kept and the next run resumes from the stored counter.
func (p *RecurringProcessor) MaterializeSpec(ctx context.Context, owner core.OwnerID, specID int64, today core.Date) (SpecResult, error) {
	res := SpecResult{SpecID: specID}

	spec, err := p.store.GetSpec(ctx, owner, specID)
	if err != nil {
		return res, err
	}
	plan, err := p.projector.Project(spec, today)
	if err != nil {
		return res, err
	}
	if plan.Truncated {
		p.logger.WarnContext(ctx, "Projection hit iteration cap",
			log.FieldSpecID, spec.ID,
			"max_iterations", p.projector.MaxIterations)
	}

	for _, occ := range plan.Occurrences {
		entry, updated, err := p.store.MaterializeOccurrence(ctx, owner, occ)
		if core.KindOf(err) == core.KindConflict {
			// another run got there first; it owns the rest of this spec
			p.logger.InfoContext(ctx, "Occurrence already materialized",
				log.NewFields().WithOccurrence(occ).ToSlice()...)
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("materialize %s #%d: %w", occ.Date, occ.Index, err)
		}
		spec = updated
		res.Emitted = append(res.Emitted, entry)
		p.publishCreated(ctx, entry)

		p.logger.DebugContext(ctx, "Materialized occurrence",
			log.NewFields().WithOwner(owner).WithOccurrence(occ).WithEntry(entry).ToSlice()...)
	}

	// finalization without a new occurrence (end date passed, ONCE already emitted)
	if plan.Finalized() && spec.Status == core.StatusActive {
		spec.Status = core.StatusFinalized
		if _, err := p.store.UpdateSpecState(ctx, spec); err != nil {
			return res, fmt.Errorf("finalize spec: %w", err)
		}
	}
	res.Finalized = plan.Finalized()
	if res.Finalized {
		p.logger.InfoContext(ctx, "Spec finalized", log.FieldSpecID, spec.ID, log.FieldOwnerID, string(owner))
	}
	return res, nil
}

func (p *RecurringProcessor) publishCreated(ctx context.Context, e core.LedgerEntry) {
	publishEntryEvent(ctx, p.events, p.logger, amqp.EntryCreated, e)
}

// publishEntryEvent is best effort: the entry is already committed.
func publishEntryEvent(ctx context.Context, pub EventPublisher, logger *log.Logger, t amqp.EventType, e core.LedgerEntry) {
	if pub == nil {
		return
	}
	ev := amqp.NewEntryEvent(t, string(e.OwnerID), e.ID, e.Version)
	ev.SpecID = e.SpecID
	if err := pub.PublishEntryEvent(ctx, ev); err != nil {
		logger.WarnContext(ctx, "Failed to publish entry event",
			log.NewFields().WithEntry(e).WithError(err).ToSlice()...,
		)
	}
}
