package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"budgetbook/internal/core"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// DSN builds the connection string used for the main pool: foreign keys on,
// WAL journal, a busy timeout, and BEGIN IMMEDIATE for every transaction so
// writers serialize instead of failing on lock upgrade.
func DSN(dbPath string) string {
	v := url.Values{}
	v.Add("_pragma", "foreign_keys(1)")
	v.Add("_pragma", "busy_timeout(5000)")
	v.Add("_pragma", "journal_mode(WAL)")
	v.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + v.Encode()
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return mapError("storage.ping", r.db.PingContext(ctx))
}

// SetClock replaces the time source used for created/updated timestamps.
func (r *SQLiteRepository) SetClock(now func() time.Time) {
	r.now = now
}

// InTx runs fn inside one transaction. The transaction is rolled back when fn
// returns an error or panics, and committed otherwise.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("storage.begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("storage.commit", err)
	}
	return nil
}

func notFoundAs(err error, op, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(op, entity, id)
	}
	return mapError(op, err)
}

// checkRefs verifies that the category and account exist and belong to owner.
func checkRefs(ctx context.Context, q *Queries, op string, owner core.OwnerID, categoryID, accountID int64) error {
	if _, err := q.GetCategory(ctx, owner, categoryID); err != nil {
		return notFoundAs(err, op, "category", categoryID)
	}
	if _, err := q.GetAccount(ctx, owner, accountID); err != nil {
		return notFoundAs(err, op, "account", accountID)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func checkTags(ctx context.Context, q *Queries, op string, owner core.OwnerID, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := q.CountOwnedTags(ctx, owner, ids)
	if err != nil {
		return mapError(op, err)
	}
	if n != len(ids) {
		return core.NewError(core.KindNotFound, op, "one or more tags not found")
	}
	return nil
}

func adjustBalance(ctx context.Context, q *Queries, op string, owner core.OwnerID, accountID, delta int64) error {
	if delta == 0 {
		return nil
	}
	n, err := q.AdjustAccountBalance(ctx, owner, accountID, delta)
	if err != nil {
		return mapError(op, err)
	}
	if n != 1 {
		return core.NotFound(op, "account", accountID)
	}
	return nil
}

// CreateEntry inserts a manual entry and moves the account balance cache in
// the same transaction.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	const op = "storage.create_entry"
	var created core.LedgerEntry
	err := r.InTx(ctx, func(q *Queries) error {
		if err := q.EnsureOwner(ctx, e.OwnerID); err != nil {
			return mapError(op, err)
		}
		if err := checkRefs(ctx, q, op, e.OwnerID, e.CategoryID, e.AccountID); err != nil {
			return err
		}
		if e.SpecID != nil {
			if _, err := q.GetSpec(ctx, e.OwnerID, *e.SpecID); err != nil {
				return notFoundAs(err, op, "spec", *e.SpecID)
			}
		}
		tags := uniqueIDs(e.TagIDs)
		if err := checkTags(ctx, q, op, e.OwnerID, tags); err != nil {
			return err
		}

		var err error
		created, err = q.InsertEntry(ctx, e, r.now())
		if err != nil {
			return mapError(op, err)
		}
		if err := q.SetEntryTags(ctx, created.ID, tags); err != nil {
			return mapError(op, err)
		}
		created.TagIDs = tags
		return adjustBalance(ctx, q, op, e.OwnerID, e.AccountID, e.Amount.Signed(e.Kind))
	})
	return created, err
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error) {
	const op = "storage.get_entry"
	e, err := r.queries.GetEntry(ctx, owner, id)
	if err != nil {
		return core.LedgerEntry{}, notFoundAs(err, op, "entry", id)
	}
	tags, err := r.queries.EntryTagIDs(ctx, []int64{id})
	if err != nil {
		return core.LedgerEntry{}, mapError(op, err)
	}
	e.TagIDs = tags[id]
	return e, nil
}

// UpdateEntry rewrites amount, kind, description, date, category, account and
// (when TagIDs is non-nil) tags. A non-zero Version must match the stored one.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	const op = "storage.update_entry"
	var updated core.LedgerEntry
	err := r.InTx(ctx, func(q *Queries) error {
		old, err := q.GetEntry(ctx, e.OwnerID, e.ID)
		if err != nil {
			return notFoundAs(err, op, "entry", e.ID)
		}
		if e.Version == 0 {
			e.Version = old.Version
		}
		if e.Version != old.Version {
			return core.NewError(core.KindConflict, op,
				fmt.Sprintf("entry %d was modified (version %d, have %d)", e.ID, old.Version, e.Version))
		}
		if err := checkRefs(ctx, q, op, e.OwnerID, e.CategoryID, e.AccountID); err != nil {
			return err
		}

		updated, err = q.UpdateEntry(ctx, e, r.now())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.NewError(core.KindConflict, op, fmt.Sprintf("entry %d was modified concurrently", e.ID))
			}
			return mapError(op, err)
		}

		if err := adjustBalance(ctx, q, op, e.OwnerID, old.AccountID, -old.Amount.Signed(old.Kind)); err != nil {
			return err
		}
		if err := adjustBalance(ctx, q, op, e.OwnerID, updated.AccountID, updated.Amount.Signed(updated.Kind)); err != nil {
			return err
		}

		if e.TagIDs != nil {
			tags := uniqueIDs(e.TagIDs)
			if err := checkTags(ctx, q, op, e.OwnerID, tags); err != nil {
				return err
			}
			if err := q.SetEntryTags(ctx, e.ID, tags); err != nil {
				return mapError(op, err)
			}
			updated.TagIDs = tags
			return nil
		}
		tags, err := q.EntryTagIDs(ctx, []int64{e.ID})
		if err != nil {
			return mapError(op, err)
		}
		updated.TagIDs = tags[e.ID]
		return nil
	})
	return updated, err
}

// DeleteEntry removes an entry and reverses its effect on the balance cache.
// The deleted row is returned.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error) {
	const op = "storage.delete_entry"
	var deleted core.LedgerEntry
	err := r.InTx(ctx, func(q *Queries) error {
		var err error
		deleted, err = q.GetEntry(ctx, owner, id)
		if err != nil {
			return notFoundAs(err, op, "entry", id)
		}
		if _, err := q.DeleteEntry(ctx, owner, id); err != nil {
			return mapError(op, err)
		}
		return adjustBalance(ctx, q, op, owner, deleted.AccountID, -deleted.Amount.Signed(deleted.Kind))
	})
	return deleted, err
}

// ListEntries returns one page of entries matching f plus the total count.
func (r *SQLiteRepository) ListEntries(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.EntryPage, error) {
	const op = "storage.list_entries"
	page := core.EntryPage{Limit: f.Limit, Offset: f.Offset}
	err := r.InTx(ctx, func(q *Queries) error {
		total, err := q.CountEntries(ctx, owner, f)
		if err != nil {
			return mapError(op, err)
		}
		entries, err := q.ListEntries(ctx, owner, f)
		if err != nil {
			return mapError(op, err)
		}
		if err := attachTags(ctx, q, entries); err != nil {
			return mapError(op, err)
		}
		page.Total = total
		page.Entries = entries
		return nil
	})
	return page, err
}

func attachTags(ctx context.Context, q *Queries, entries []core.LedgerEntry) error {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	tags, err := q.EntryTagIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range entries {
		entries[i].TagIDs = tags[entries[i].ID]
	}
	return nil
}

// ReportSnapshot reads the entries matching f, the owner's ACTIVE specs and
// categories in one transaction, so a spec counter is never seen ahead of
// its entry.
func (r *SQLiteRepository) ReportSnapshot(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.LedgerSnapshot, error) {
	const op = "storage.report_snapshot"
	var snap core.LedgerSnapshot
	f.Limit, f.Offset = 0, 0
	err := r.InTx(ctx, func(q *Queries) error {
		var err error
		if snap.Entries, err = q.ListEntries(ctx, owner, f); err != nil {
			return mapError(op, err)
		}
		if snap.Specs, err = q.ListSpecsByStatus(ctx, owner, core.StatusActive); err != nil {
			return mapError(op, err)
		}
		if snap.Categories, err = q.ListCategories(ctx, owner); err != nil {
			return mapError(op, err)
		}
		return nil
	})
	return snap, err
}
