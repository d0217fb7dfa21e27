package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"budgetbook/internal/core"
)

const entryColumns = `id, owner_id, description, amount_cents, kind, date, category_id, account_id,
	spec_id, occurrence_index, version, created_at, updated_at`

func scanEntry(row rowScanner) (core.LedgerEntry, error) {
	var (
		e         core.LedgerEntry
		owner     string
		kind      string
		date      sql.NullString
		specID    sql.NullInt64
		occIndex  sql.NullInt64
		createdAt sqlTime
		updatedAt sqlTime
	)
	if err := row.Scan(&e.ID, &owner, &e.Description, &e.Amount.Cents, &kind, &date,
		&e.CategoryID, &e.AccountID, &specID, &occIndex, &e.Version, &createdAt, &updatedAt); err != nil {
		return core.LedgerEntry{}, err
	}
	k, err := core.ParseKind(kind)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", e.ID, err)
	}
	d, err := scanDate(date)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %d date: %w", e.ID, err)
	}
	e.OwnerID = core.OwnerID(owner)
	e.Kind = k
	e.Date = d
	e.SpecID = int64Ptr(specID)
	e.OccurrenceIndex = int(occIndex.Int64)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time
	return e, nil
}

const insertEntry = `
INSERT INTO entries (owner_id, description, amount_cents, kind, date, category_id, account_id,
	spec_id, occurrence_index, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + entryColumns

func (q *Queries) InsertEntry(ctx context.Context, e core.LedgerEntry, now time.Time) (core.LedgerEntry, error) {
	var occ sql.NullInt64
	if e.SpecID != nil {
		occ = sql.NullInt64{Int64: int64(e.OccurrenceIndex), Valid: true}
	}
	row := q.db.QueryRowContext(ctx, insertEntry,
		string(e.OwnerID), e.Description, e.Amount.Cents, e.Kind.String(), e.Date.String(),
		e.CategoryID, e.AccountID, nullInt64(e.SpecID), occ, timeParam(now), timeParam(now))
	return scanEntry(row)
}

const getEntry = `SELECT ` + entryColumns + ` FROM entries WHERE id = ? AND owner_id = ?`

func (q *Queries) GetEntry(ctx context.Context, owner core.OwnerID, id int64) (core.LedgerEntry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id, string(owner)))
}

const updateEntry = `
UPDATE entries
SET description = ?, amount_cents = ?, kind = ?, date = ?, category_id = ?, account_id = ?,
	version = version + 1, updated_at = ?
WHERE id = ? AND owner_id = ? AND version = ?
RETURNING ` + entryColumns

// UpdateEntry applies the mutable fields of e when the stored version equals
// e.Version. sql.ErrNoRows means either a missing row or a stale version.
func (q *Queries) UpdateEntry(ctx context.Context, e core.LedgerEntry, now time.Time) (core.LedgerEntry, error) {
	row := q.db.QueryRowContext(ctx, updateEntry,
		e.Description, e.Amount.Cents, e.Kind.String(), e.Date.String(), e.CategoryID, e.AccountID,
		timeParam(now), e.ID, string(e.OwnerID), e.Version)
	return scanEntry(row)
}

const deleteEntry = `DELETE FROM entries WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteEntry(ctx context.Context, owner core.OwnerID, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEntry, id, string(owner))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const categorySubtree = `
WITH RECURSIVE sub(id) AS (
	SELECT id FROM categories WHERE id = ? AND owner_id = ?
	UNION ALL
	SELECT c.id FROM categories c JOIN sub ON c.parent_id = sub.id
)
SELECT id FROM sub`

func entryFilterSQL(owner core.OwnerID, f core.EntryFilter) (string, []interface{}) {
	where := []string{"owner_id = ?"}
	args := []interface{}{string(owner)}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Kind.IsValid() {
		where = append(where, "kind = ?")
		args = append(args, f.Kind.String())
	}
	if f.CategoryID > 0 {
		where = append(where, "category_id IN ("+categorySubtree+")")
		args = append(args, f.CategoryID, string(owner))
	}
	if f.AccountID > 0 {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.TagID > 0 {
		where = append(where, "id IN (SELECT entry_id FROM entry_tags WHERE tag_id = ?)")
		args = append(args, f.TagID)
	}
	if f.SpecID > 0 {
		where = append(where, "spec_id = ?")
		args = append(args, f.SpecID)
	}
	if t := strings.TrimSpace(f.Text); t != "" {
		where = append(where, `description LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	return strings.Join(where, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListEntries returns entries matching f, newest first. Limit <= 0 returns all rows.
func (q *Queries) ListEntries(ctx context.Context, owner core.OwnerID, f core.EntryFilter) ([]core.LedgerEntry, error) {
	where, args := entryFilterSQL(owner, f)
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + where + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) CountEntries(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (int, error) {
	where, args := entryFilterSQL(owner, f)
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE `+where, args...).Scan(&n)
	return n, err
}

const listEntriesBySpec = `SELECT ` + entryColumns + ` FROM entries WHERE owner_id = ? AND spec_id = ? ORDER BY occurrence_index`

func (q *Queries) ListEntriesBySpec(ctx context.Context, owner core.OwnerID, specID int64) ([]core.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, listEntriesBySpec, string(owner), specID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const detachSpecEntries = `
UPDATE entries SET spec_id = NULL, occurrence_index = NULL, version = version + 1, updated_at = ?
WHERE owner_id = ? AND spec_id = ?`

func (q *Queries) DetachSpecEntries(ctx context.Context, owner core.OwnerID, specID int64, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, detachSpecEntries, timeParam(now), string(owner), specID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const moveEntriesCategory = `
UPDATE entries SET category_id = ?, version = version + 1, updated_at = ?
WHERE owner_id = ? AND category_id = ?`

func (q *Queries) MoveEntriesCategory(ctx context.Context, owner core.OwnerID, from, to int64, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, moveEntriesCategory, to, timeParam(now), string(owner), from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Entry tags

const deleteEntryTags = `DELETE FROM entry_tags WHERE entry_id = ?`

func (q *Queries) SetEntryTags(ctx context.Context, entryID int64, tagIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, deleteEntryTags, entryID); err != nil {
		return err
	}
	for _, id := range tagIDs {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO entry_tags (entry_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, entryID, id); err != nil {
			return err
		}
	}
	return nil
}

// EntryTagIDs loads tag ids for the given entries.
func (q *Queries) EntryTagIDs(ctx context.Context, entryIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(entryIDs))
	for i, id := range entryIDs {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT entry_id, tag_id FROM entry_tags WHERE entry_id IN (`+placeholders(len(args))+`) ORDER BY entry_id, tag_id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entryID, tagID int64
		if err := rows.Scan(&entryID, &tagID); err != nil {
			return nil, err
		}
		out[entryID] = append(out[entryID], tagID)
	}
	return out, rows.Err()
}
