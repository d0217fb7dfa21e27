package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budgetbook/internal/core"
)

const specColumns = `id, owner_id, description, amount_cents, kind, cadence, start_date, end_date,
	total_installments, installments_emitted, last_emitted_date, status, category_id, account_id,
	version, created_at, updated_at`

func scanSpec(row rowScanner) (core.RecurrenceSpec, error) {
	var (
		s                    core.RecurrenceSpec
		owner, kind, cadence string
		status               string
		start, end, lastEmit sql.NullString
		total                sql.NullInt64
		createdAt, updatedAt sqlTime
	)
	if err := row.Scan(&s.ID, &owner, &s.Description, &s.Amount.Cents, &kind, &cadence, &start, &end,
		&total, &s.InstallmentsEmitted, &lastEmit, &status, &s.CategoryID, &s.AccountID,
		&s.Version, &createdAt, &updatedAt); err != nil {
		return core.RecurrenceSpec{}, err
	}
	var err error
	if s.Kind, err = core.ParseKind(kind); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d: %w", s.ID, err)
	}
	if s.Cadence, err = core.ParseCadence(cadence); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d: %w", s.ID, err)
	}
	if s.Status, err = core.ParseStatus(status); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d: %w", s.ID, err)
	}
	if s.StartDate, err = scanDate(start); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d start date: %w", s.ID, err)
	}
	if s.EndDate, err = scanDate(end); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d end date: %w", s.ID, err)
	}
	if s.LastEmittedDate, err = scanDate(lastEmit); err != nil {
		return core.RecurrenceSpec{}, fmt.Errorf("spec %d last emitted date: %w", s.ID, err)
	}
	s.OwnerID = core.OwnerID(owner)
	s.TotalInstallments = intPtr(total)
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time
	return s, nil
}

func scanSpecs(rows *sql.Rows) ([]core.RecurrenceSpec, error) {
	defer rows.Close()
	var out []core.RecurrenceSpec
	for rows.Next() {
		s, err := scanSpec(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const insertSpec = `
INSERT INTO specs (owner_id, description, amount_cents, kind, cadence, start_date, end_date,
	total_installments, installments_emitted, last_emitted_date, status, category_id, account_id,
	version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, 1, ?, ?)
RETURNING ` + specColumns

func (q *Queries) InsertSpec(ctx context.Context, s core.RecurrenceSpec, now time.Time) (core.RecurrenceSpec, error) {
	row := q.db.QueryRowContext(ctx, insertSpec,
		string(s.OwnerID), s.Description, s.Amount.Cents, s.Kind.String(), s.Cadence.String(),
		dateParam(s.StartDate), dateParam(s.EndDate), nullIntFromPtr(s.TotalInstallments),
		s.Status.String(), s.CategoryID, s.AccountID, timeParam(now), timeParam(now))
	return scanSpec(row)
}

const getSpec = `SELECT ` + specColumns + ` FROM specs WHERE id = ? AND owner_id = ?`

func (q *Queries) GetSpec(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error) {
	return scanSpec(q.db.QueryRowContext(ctx, getSpec, id, string(owner)))
}

const listSpecs = `SELECT ` + specColumns + ` FROM specs WHERE owner_id = ? ORDER BY id`

func (q *Queries) ListSpecs(ctx context.Context, owner core.OwnerID) ([]core.RecurrenceSpec, error) {
	rows, err := q.db.QueryContext(ctx, listSpecs, string(owner))
	if err != nil {
		return nil, err
	}
	return scanSpecs(rows)
}

const listSpecsByStatus = `SELECT ` + specColumns + ` FROM specs WHERE owner_id = ? AND status = ? ORDER BY id`

func (q *Queries) ListSpecsByStatus(ctx context.Context, owner core.OwnerID, status core.Status) ([]core.RecurrenceSpec, error) {
	rows, err := q.db.QueryContext(ctx, listSpecsByStatus, string(owner), status.String())
	if err != nil {
		return nil, err
	}
	return scanSpecs(rows)
}

const listAllActiveSpecIDs = `SELECT id, owner_id FROM specs WHERE status = 'active' ORDER BY owner_id, id`

// SpecRef addresses a spec across owners.
type SpecRef struct {
	ID      int64
	OwnerID core.OwnerID
}

func (q *Queries) ListAllActiveSpecRefs(ctx context.Context) ([]SpecRef, error) {
	rows, err := q.db.QueryContext(ctx, listAllActiveSpecIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpecRef
	for rows.Next() {
		var (
			ref   SpecRef
			owner string
		)
		if err := rows.Scan(&ref.ID, &owner); err != nil {
			return nil, err
		}
		ref.OwnerID = core.OwnerID(owner)
		out = append(out, ref)
	}
	return out, rows.Err()
}

const updateSpecDefinition = `
UPDATE specs
SET description = ?, amount_cents = ?, kind = ?, cadence = ?, start_date = ?, end_date = ?,
	total_installments = ?, category_id = ?, account_id = ?, version = version + 1, updated_at = ?
WHERE id = ? AND owner_id = ? AND version = ?
RETURNING ` + specColumns

// UpdateSpecDefinition rewrites the user-editable fields. Counters and status
// are left to UpdateSpecState.
func (q *Queries) UpdateSpecDefinition(ctx context.Context, s core.RecurrenceSpec, now time.Time) (core.RecurrenceSpec, error) {
	row := q.db.QueryRowContext(ctx, updateSpecDefinition,
		s.Description, s.Amount.Cents, s.Kind.String(), s.Cadence.String(),
		dateParam(s.StartDate), dateParam(s.EndDate), nullIntFromPtr(s.TotalInstallments),
		s.CategoryID, s.AccountID, timeParam(now), s.ID, string(s.OwnerID), s.Version)
	return scanSpec(row)
}

const updateSpecState = `
UPDATE specs
SET installments_emitted = ?, last_emitted_date = ?, status = ?, version = version + 1, updated_at = ?
WHERE id = ? AND owner_id = ? AND version = ?
RETURNING ` + specColumns

// UpdateSpecState writes counters and status when the stored version matches.
func (q *Queries) UpdateSpecState(ctx context.Context, s core.RecurrenceSpec, now time.Time) (core.RecurrenceSpec, error) {
	row := q.db.QueryRowContext(ctx, updateSpecState,
		s.InstallmentsEmitted, dateParam(s.LastEmittedDate), s.Status.String(), timeParam(now),
		s.ID, string(s.OwnerID), s.Version)
	return scanSpec(row)
}

const moveSpecsCategory = `
UPDATE specs SET category_id = ?, version = version + 1, updated_at = ?
WHERE owner_id = ? AND category_id = ?`

func (q *Queries) MoveSpecsCategory(ctx context.Context, owner core.OwnerID, from, to int64, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, moveSpecsCategory, to, timeParam(now), string(owner), from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteSpec = `DELETE FROM specs WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteSpec(ctx context.Context, owner core.OwnerID, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSpec, id, string(owner))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
