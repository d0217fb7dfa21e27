package storage

import (
	"context"

	"budgetbook/internal/core"
)

const tagColumns = `id, owner_id, name, color`

func scanTag(row rowScanner) (core.Tag, error) {
	var (
		t     core.Tag
		owner string
	)
	if err := row.Scan(&t.ID, &owner, &t.Name, &t.Color); err != nil {
		return core.Tag{}, err
	}
	t.OwnerID = core.OwnerID(owner)
	return t, nil
}

const insertTag = `INSERT INTO tags (owner_id, name, color) VALUES (?, ?, ?) RETURNING ` + tagColumns

func (q *Queries) InsertTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, insertTag, string(t.OwnerID), t.Name, t.Color))
}

const listTags = `SELECT ` + tagColumns + ` FROM tags WHERE owner_id = ? ORDER BY name`

func (q *Queries) ListTags(ctx context.Context, owner core.OwnerID) ([]core.Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTags, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountOwnedTags returns how many of ids belong to owner.
func (q *Queries) CountOwnedTags(ctx context.Context, owner core.OwnerID, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, string(owner))
	for _, id := range ids {
		args = append(args, id)
	}
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...).Scan(&n)
	return n, err
}
