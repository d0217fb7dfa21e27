package storage

import (
	"context"
	"database/sql"

	"budgetbook/internal/core"
)

const categoryColumns = `id, owner_id, name, color, parent_id, created_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		owner     string
		parent    sql.NullInt64
		createdAt sqlTime
	)
	if err := row.Scan(&c.ID, &owner, &c.Name, &c.Color, &parent, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.OwnerID = core.OwnerID(owner)
	c.ParentID = int64Ptr(parent)
	c.CreatedAt = createdAt.Time
	return c, nil
}

const insertCategory = `
INSERT INTO categories (owner_id, name, color, parent_id) VALUES (?, ?, ?, ?)
RETURNING ` + categoryColumns

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, insertCategory,
		string(c.OwnerID), c.Name, c.Color, nullInt64(c.ParentID)))
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? AND owner_id = ?`

func (q *Queries) GetCategory(ctx context.Context, owner core.OwnerID, id int64) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id, string(owner)))
}

const findRootCategoryByName = `
SELECT ` + categoryColumns + ` FROM categories
WHERE owner_id = ? AND parent_id IS NULL AND name = ? COLLATE NOCASE
ORDER BY id LIMIT 1`

func (q *Queries) FindRootCategoryByName(ctx context.Context, owner core.OwnerID, name string) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, findRootCategoryByName, string(owner), name))
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = ? ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context, owner core.OwnerID) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const setCategoryParent = `UPDATE categories SET parent_id = ? WHERE id = ? AND owner_id = ?`

func (q *Queries) SetCategoryParent(ctx context.Context, owner core.OwnerID, id int64, parent *int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, setCategoryParent, nullInt64(parent), id, string(owner))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const reparentChildren = `UPDATE categories SET parent_id = ? WHERE owner_id = ? AND parent_id = ?`

func (q *Queries) ReparentChildren(ctx context.Context, owner core.OwnerID, from int64, to *int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, reparentChildren, nullInt64(to), string(owner), from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, owner core.OwnerID, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id, string(owner))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
