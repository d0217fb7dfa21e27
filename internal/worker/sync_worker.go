package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/sheets"
)

// EntryReader is the owner-scoped read side the mirror needs.
type EntryReader interface {
	GetEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error)
	GetCategory(ctx context.Context, owner core.OwnerID, id int64) (core.Category, error)
	GetAccount(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error)
	ListEntries(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.EntryPage, error)
}

// SyncWorker mirrors ledger entries into an external sheet as entry events
// arrive.
type SyncWorker struct {
	store     EntryReader
	mirror    sheets.EntryMirror
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store EntryReader, mirror sheets.EntryMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    log.Default(log.ComponentWorker),
	}
}

// HandleEvent applies one entry event to the mirror. A returned error makes
// the consumer requeue the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.EntryEvent) error {
	owner := core.OwnerID(ev.OwnerID)
	w.logger.InfoContext(ctx, "Processing entry event",
		log.FieldEventType, string(ev.Type),
		log.FieldOwnerID, ev.OwnerID,
		log.FieldEntryID, ev.EntryID,
		"version", ev.Version)

	switch ev.Type {
	case amqp.EntryCreated, amqp.EntryUpdated:
		entry, err := w.store.GetEntry(ctx, owner, ev.EntryID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before this event was consumed; the delete event follows.
			w.logger.InfoContext(ctx, "Entry gone, clearing mirror row", log.FieldEntryID, ev.EntryID)
			return w.mirror.Delete(ctx, ev.EntryID)
		}
		if err != nil {
			return fmt.Errorf("get entry %d: %w", ev.EntryID, err)
		}
		return w.sync(ctx, entry, nil)
	case amqp.EntryDeleted:
		if err := w.mirror.Delete(ctx, ev.EntryID); err != nil {
			return fmt.Errorf("delete mirror row %d: %w", ev.EntryID, err)
		}
		w.logger.InfoContext(ctx, "Cleared mirror row", log.FieldEntryID, ev.EntryID)
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", log.FieldEventType, string(ev.Type))
		return nil
	}
}

// names memoizes category and account names during a backfill.
type names struct {
	categories map[int64]string
	accounts   map[int64]string
}

func (w *SyncWorker) sync(ctx context.Context, e core.LedgerEntry, cache *names) error {
	row, err := w.row(ctx, e, cache)
	if err != nil {
		return err
	}
	ref, err := w.mirror.Upsert(ctx, row)
	if err != nil {
		return fmt.Errorf("upsert mirror row %d: %w", e.ID, err)
	}
	w.logger.DebugContext(ctx, "Mirrored entry",
		append(log.NewFields().WithOwner(e.OwnerID).WithEntry(e).ToSlice(), "row", ref)...)
	return nil
}

func (w *SyncWorker) row(ctx context.Context, e core.LedgerEntry, cache *names) (sheets.Row, error) {
	row := sheets.Row{
		EntryID:     e.ID,
		OwnerID:     e.OwnerID,
		Date:        e.Date,
		Description: e.Description,
		Kind:        e.Kind,
		Amount:      e.Amount,
		SpecID:      e.SpecID,
	}

	if name, ok := cache.category(e.CategoryID); ok {
		row.Category = name
	} else {
		cat, err := w.store.GetCategory(ctx, e.OwnerID, e.CategoryID)
		if err != nil {
			return row, fmt.Errorf("get category %d: %w", e.CategoryID, err)
		}
		row.Category = cat.Name
		cache.setCategory(cat.ID, cat.Name)
	}

	if name, ok := cache.account(e.AccountID); ok {
		row.Account = name
	} else {
		acc, err := w.store.GetAccount(ctx, e.OwnerID, e.AccountID)
		if err != nil {
			return row, fmt.Errorf("get account %d: %w", e.AccountID, err)
		}
		row.Account = acc.Name
		cache.setAccount(acc.ID, acc.Name)
	}
	return row, nil
}

func (n *names) category(id int64) (string, bool) {
	if n == nil {
		return "", false
	}
	s, ok := n.categories[id]
	return s, ok
}

func (n *names) account(id int64) (string, bool) {
	if n == nil {
		return "", false
	}
	s, ok := n.accounts[id]
	return s, ok
}

func (n *names) setCategory(id int64, name string) {
	if n != nil {
		n.categories[id] = name
	}
}

func (n *names) setAccount(id int64, name string) {
	if n != nil {
		n.accounts[id] = name
	}
}

// Backfill mirrors every entry of owner, for recovering from missed events
// or a fresh sheet. Per-entry failures are logged and skipped.
func (w *SyncWorker) Backfill(ctx context.Context, owner core.OwnerID) (synced, failed int, err error) {
	cache := &names{categories: map[int64]string{}, accounts: map[int64]string{}}
	for offset := 0; ; offset += w.batchSize {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		page, err := w.store.ListEntries(ctx, owner, core.EntryFilter{Limit: w.batchSize, Offset: offset})
		if err != nil {
			return synced, failed, fmt.Errorf("list entries: %w", err)
		}
		for _, e := range page.Entries {
			if err := w.sync(ctx, e, cache); err != nil {
				w.logger.ErrorContext(ctx, "Failed to mirror entry",
					log.NewFields().WithOwner(owner).WithEntry(e).WithError(err).WithOperation(log.OpSync).ToSlice()...)
				failed++
				continue
			}
			synced++
		}
		if len(page.Entries) < w.batchSize {
			break
		}
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		log.FieldOwnerID, string(owner),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}
