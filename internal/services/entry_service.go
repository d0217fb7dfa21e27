package services

import (
	"context"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

type EntryStore interface {
	CreateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
	GetEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error)
	UpdateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
	DeleteEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error)
	ListEntries(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.EntryPage, error)
}

// EntryService orchestrates ledger entry operations across SQLite and AMQP.
type EntryService struct {
	store       EntryStore
	events      EventPublisher
	pageDefault int
	pageMax     int
	logger      *log.Logger
}

// NewEntryService creates an entry service. events may be nil, which
// disables entry events.
func NewEntryService(store EntryStore, events EventPublisher, pageDefault, pageMax int) *EntryService {
	return &EntryService{
		store:       store,
		events:      events,
		pageDefault: pageDefault,
		pageMax:     pageMax,
		logger:      log.Default(log.ComponentStorage),
	}
}

// Create saves a manual entry and announces it. Spec links are only set by
// materialization.
func (s *EntryService) Create(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	e.SpecID = nil
	e.OccurrenceIndex = 0
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	created, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("save entry: %w", err)
	}
	publishEntryEvent(ctx, s.events, s.logger, amqp.EntryCreated, created)
	return created, nil
}

func (s *EntryService) Get(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error) {
	return s.store.GetEntry(ctx, owner, id)
}

// Update rewrites an entry. A non-zero Version must match the stored one.
func (s *EntryService) Update(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if e.ID <= 0 {
		return core.LedgerEntry{}, core.NewError(core.KindInvalidInput, "entry.update", "missing entry id")
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	updated, err := s.store.UpdateEntry(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update entry: %w", err)
	}
	publishEntryEvent(ctx, s.events, s.logger, amqp.EntryUpdated, updated)
	return updated, nil
}

func (s *EntryService) Delete(ctx context.Context, owner core.OwnerID, id int64) error {
	deleted, err := s.store.DeleteEntry(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	publishEntryEvent(ctx, s.events, s.logger, amqp.EntryDeleted, deleted)
	return nil
}

// List returns one page of entries. A zero limit uses the default page size;
// larger limits are capped.
func (s *EntryService) List(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.EntryPage, error) {
	const op = "entry.list"
	if f.Offset < 0 || f.Limit < 0 {
		return core.EntryPage{}, core.NewError(core.KindInvalidInput, op, "limit and offset must not be negative")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return core.EntryPage{}, core.NewError(core.KindInvalidInput, op, "to must not be before from")
	}
	if f.Kind != core.KindUnknown && !f.Kind.IsValid() {
		return core.EntryPage{}, core.NewError(core.KindInvalidInput, op, "invalid kind")
	}
	if f.Limit == 0 {
		f.Limit = s.pageDefault
	}
	if s.pageMax > 0 && f.Limit > s.pageMax {
		f.Limit = s.pageMax
	}
	return s.store.ListEntries(ctx, owner, f)
}
