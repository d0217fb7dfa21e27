package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"budgetbook/internal/core"
)

func (r *SQLiteRepository) CreateSpec(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error) {
	const op = "storage.create_spec"
	var created core.RecurrenceSpec
	err := r.InTx(ctx, func(q *Queries) error {
		if err := q.EnsureOwner(ctx, s.OwnerID); err != nil {
			return mapError(op, err)
		}
		if err := checkRefs(ctx, q, op, s.OwnerID, s.CategoryID, s.AccountID); err != nil {
			return err
		}
		var err error
		created, err = q.InsertSpec(ctx, s, r.now())
		return mapError(op, err)
	})
	return created, err
}

func (r *SQLiteRepository) GetSpec(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	s, err := r.queries.GetSpec(ctx, owner, id)
	if err != nil {
		return core.RecurrenceSpec{}, notFoundAs(err, "storage.get_spec", "spec", id)
	}
	return s, nil
}

// ListSpecs lists the owner's specs, optionally restricted to one status.
func (r *SQLiteRepository) ListSpecs(ctx context.Context, owner core.OwnerID, status core.Status) ([]core.RecurrenceSpec, error) {
	var (
		specs []core.RecurrenceSpec
		err   error
	)
	if status.IsValid() {
		specs, err = r.queries.ListSpecsByStatus(ctx, owner, status)
	} else {
		specs, err = r.queries.ListSpecs(ctx, owner)
	}
	return specs, mapError("storage.list_specs", err)
}

func (r *SQLiteRepository) ListActiveSpecs(ctx context.Context, owner core.OwnerID) ([]core.RecurrenceSpec, error) {
	return r.ListSpecs(ctx, owner, core.StatusActive)
}

// ListAllActiveSpecRefs enumerates ACTIVE specs across every owner.
func (r *SQLiteRepository) ListAllActiveSpecRefs(ctx context.Context) ([]SpecRef, error) {
	refs, err := r.queries.ListAllActiveSpecRefs(ctx)
	return refs, mapError("storage.list_all_active_specs", err)
}

// versionConflict distinguishes a missing spec from a stale version after an
// optimistic update matched no row.
func versionConflict(ctx context.Context, q *Queries, op string, s core.RecurrenceSpec) error {
	cur, err := q.GetSpec(ctx, s.OwnerID, s.ID)
	if err != nil {
		return notFoundAs(err, op, "spec", s.ID)
	}
	return core.NewError(core.KindConflict, op,
		fmt.Sprintf("spec %d was modified (version %d, have %d)", s.ID, cur.Version, s.Version))
}

// UpdateSpec rewrites the editable fields of s when s.Version is current.
func (r *SQLiteRepository) UpdateSpec(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error) {
	const op = "storage.update_spec"
	var updated core.RecurrenceSpec
	err := r.InTx(ctx, func(q *Queries) error {
		cur, err := q.GetSpec(ctx, s.OwnerID, s.ID)
		if err != nil {
			return notFoundAs(err, op, "spec", s.ID)
		}
		if s.TotalInstallments != nil && *s.TotalInstallments < cur.InstallmentsEmitted {
			return core.NewError(core.KindInvalidSpec, op,
				fmt.Sprintf("total installments %d below already emitted %d", *s.TotalInstallments, cur.InstallmentsEmitted))
		}
		if err := checkRefs(ctx, q, op, s.OwnerID, s.CategoryID, s.AccountID); err != nil {
			return err
		}
		updated, err = q.UpdateSpecDefinition(ctx, s, r.now())
		if errors.Is(err, sql.ErrNoRows) {
			return versionConflict(ctx, q, op, s)
		}
		return mapError(op, err)
	})
	return updated, err
}

// UpdateSpecState writes installments_emitted, last_emitted_date and status.
func (r *SQLiteRepository) UpdateSpecState(ctx context.Context, s core.RecurrenceSpec) (core.RecurrenceSpec, error) {
	const op = "storage.update_spec_state"
	if err := s.CheckCounters(); err != nil {
		return core.RecurrenceSpec{}, err
	}
	var updated core.RecurrenceSpec
	err := r.InTx(ctx, func(q *Queries) error {
		var err error
		updated, err = q.UpdateSpecState(ctx, s, r.now())
		if errors.Is(err, sql.ErrNoRows) {
			return versionConflict(ctx, q, op, s)
		}
		return mapError(op, err)
	})
	return updated, err
}

// MaterializeOccurrence persists occ as an entry linked to its spec and
// advances the spec counter, last-emitted date and (for the last installment)
// status, together with the account balance, in one transaction.
//
// The stored counter must be exactly occ.Index-1; anything else means the
// occurrence was already emitted by another run and yields a Conflict.
func (r *SQLiteRepository) MaterializeOccurrence(ctx context.Context, owner core.OwnerID, occ core.Occurrence) (core.LedgerEntry, core.RecurrenceSpec, error) {
	const op = "storage.materialize_occurrence"
	var (
		entry core.LedgerEntry
		spec  core.RecurrenceSpec
	)
	err := r.InTx(ctx, func(q *Queries) error {
		cur, err := q.GetSpec(ctx, owner, occ.SpecID)
		if err != nil {
			return notFoundAs(err, op, "spec", occ.SpecID)
		}
		if err := cur.CheckCounters(); err != nil {
			return err
		}
		if cur.Status != core.StatusActive {
			return core.NewError(core.KindConflict, op, fmt.Sprintf("spec %d is %s", cur.ID, cur.Status))
		}
		if cur.InstallmentsEmitted != occ.Index-1 {
			return core.NewError(core.KindConflict, op,
				fmt.Sprintf("spec %d has emitted %d installments, cannot emit #%d", cur.ID, cur.InstallmentsEmitted, occ.Index))
		}
		if cur.Exhausted() {
			return core.NewError(core.KindInvariant, op, fmt.Sprintf("spec %d is exhausted but active", cur.ID))
		}

		specID := cur.ID
		now := r.now()
		entry, err = q.InsertEntry(ctx, core.LedgerEntry{
			OwnerID:         owner,
			Description:     occ.Description,
			Amount:          occ.Amount,
			Kind:            occ.Kind,
			Date:            occ.Date,
			CategoryID:      occ.CategoryID,
			AccountID:       occ.AccountID,
			SpecID:          &specID,
			OccurrenceIndex: occ.Index,
		}, now)
		if err != nil {
			return mapError(op, err)
		}
		if err := adjustBalance(ctx, q, op, owner, entry.AccountID, entry.Amount.Signed(entry.Kind)); err != nil {
			return err
		}

		next := cur
		next.InstallmentsEmitted = occ.Index
		next.LastEmittedDate = occ.Date
		if next.Exhausted() {
			next.Status = core.StatusFinalized
		}
		if err := next.CheckCounters(); err != nil {
			return err
		}
		spec, err = q.UpdateSpecState(ctx, next, now)
		if errors.Is(err, sql.ErrNoRows) {
			return versionConflict(ctx, q, op, next)
		}
		return mapError(op, err)
	})
	if err != nil {
		return core.LedgerEntry{}, core.RecurrenceSpec{}, err
	}
	return entry, spec, nil
}

// DeleteSpec removes a spec. With cascade its materialized entries are
// deleted (and returned); otherwise they are detached and kept.
func (r *SQLiteRepository) DeleteSpec(ctx context.Context, owner core.OwnerID, id int64, cascade bool) ([]core.LedgerEntry, error) {
	const op = "storage.delete_spec"
	var removed []core.LedgerEntry
	err := r.InTx(ctx, func(q *Queries) error {
		if _, err := q.GetSpec(ctx, owner, id); err != nil {
			return notFoundAs(err, op, "spec", id)
		}
		if cascade {
			entries, err := q.ListEntriesBySpec(ctx, owner, id)
			if err != nil {
				return mapError(op, err)
			}
			for _, e := range entries {
				if _, err := q.DeleteEntry(ctx, owner, e.ID); err != nil {
					return mapError(op, err)
				}
				if err := adjustBalance(ctx, q, op, owner, e.AccountID, -e.Amount.Signed(e.Kind)); err != nil {
					return err
				}
			}
			removed = entries
		} else {
			n, err := q.DetachSpecEntries(ctx, owner, id, r.now())
			if err != nil {
				return mapError(op, err)
			}
			slog.DebugContext(ctx, "Detached spec entries", "spec_id", id, "count", n)
		}
		_, err := q.DeleteSpec(ctx, owner, id)
		return mapError(op, err)
	})
	return removed, err
}
