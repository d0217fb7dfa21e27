package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"budgetbook/internal/core"
)

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	const op = "storage.create_category"
	var created core.Category
	err := r.InTx(ctx, func(q *Queries) error {
		if err := q.EnsureOwner(ctx, c.OwnerID); err != nil {
			return mapError(op, err)
		}
		if c.ParentID != nil {
			if _, err := q.GetCategory(ctx, c.OwnerID, *c.ParentID); err != nil {
				return notFoundAs(err, op, "category", *c.ParentID)
			}
		}
		var err error
		created, err = q.InsertCategory(ctx, c)
		return mapError(op, err)
	})
	return created, err
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, owner core.OwnerID, id int64) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, owner, id)
	if err != nil {
		return core.Category{}, notFoundAs(err, "storage.get_category", "category", id)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner core.OwnerID) ([]core.Category, error) {
	cats, err := r.queries.ListCategories(ctx, owner)
	return cats, mapError("storage.list_categories", err)
}

// ReparentCategory moves id under parent (nil makes it a root). The cycle
// check runs against the forest read inside the same transaction.
func (r *SQLiteRepository) ReparentCategory(ctx context.Context, owner core.OwnerID, id int64, parent *int64) (core.Category, error) {
	const op = "storage.reparent_category"
	var updated core.Category
	err := r.InTx(ctx, func(q *Queries) error {
		cats, err := q.ListCategories(ctx, owner)
		if err != nil {
			return mapError(op, err)
		}
		if err := core.NewForest(cats).CheckReparent(id, parent); err != nil {
			return err
		}
		if _, err := q.SetCategoryParent(ctx, owner, id, parent); err != nil {
			return mapError(op, err)
		}
		updated, err = q.GetCategory(ctx, owner, id)
		return mapError(op, err)
	})
	return updated, err
}

// CategoryDeletion reports what DeleteCategory moved.
type CategoryDeletion struct {
	Deleted         core.Category
	Fallback        core.Category
	FallbackCreated bool
	MovedEntries    int64
	MovedSpecs      int64
	ReparentedKids  int64
}

// DeleteCategory removes id. Its entries and specs move to the owner's root
// category named fallbackName, created when missing; its children move to the
// deleted category's parent.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, owner core.OwnerID, id int64, fallbackName string) (CategoryDeletion, error) {
	const op = "storage.delete_category"
	var res CategoryDeletion
	err := r.InTx(ctx, func(q *Queries) error {
		target, err := q.GetCategory(ctx, owner, id)
		if err != nil {
			return notFoundAs(err, op, "category", id)
		}
		if target.ParentID == nil && strings.EqualFold(target.Name, fallbackName) {
			return core.NewError(core.KindConflict, op,
				fmt.Sprintf("category %q receives the entries of deleted categories and cannot be deleted", target.Name))
		}
		res.Deleted = target

		fallback, err := q.FindRootCategoryByName(ctx, owner, fallbackName)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			fallback, err = q.InsertCategory(ctx, core.Category{OwnerID: owner, Name: fallbackName})
			if err != nil {
				return mapError(op, err)
			}
			res.FallbackCreated = true
		case err != nil:
			return mapError(op, err)
		}
		res.Fallback = fallback

		now := r.now()
		if res.ReparentedKids, err = q.ReparentChildren(ctx, owner, id, target.ParentID); err != nil {
			return mapError(op, err)
		}
		if res.MovedEntries, err = q.MoveEntriesCategory(ctx, owner, id, fallback.ID, now); err != nil {
			return mapError(op, err)
		}
		if res.MovedSpecs, err = q.MoveSpecsCategory(ctx, owner, id, fallback.ID, now); err != nil {
			return mapError(op, err)
		}
		_, err = q.DeleteCategory(ctx, owner, id)
		return mapError(op, err)
	})
	return res, err
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	const op = "storage.create_account"
	var created core.Account
	err := r.InTx(ctx, func(q *Queries) error {
		if err := q.EnsureOwner(ctx, a.OwnerID); err != nil {
			return mapError(op, err)
		}
		var err error
		created, err = q.InsertAccount(ctx, a)
		return mapError(op, err)
	})
	return created, err
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, owner, id)
	if err != nil {
		return core.Account{}, notFoundAs(err, "storage.get_account", "account", id)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, owner core.OwnerID) ([]core.Account, error) {
	accounts, err := r.queries.ListAccounts(ctx, owner)
	return accounts, mapError("storage.list_accounts", err)
}

func (r *SQLiteRepository) SetAccountActive(ctx context.Context, owner core.OwnerID, id int64, active bool) (core.Account, error) {
	a, err := r.queries.SetAccountActive(ctx, owner, id, active)
	if err != nil {
		return core.Account{}, notFoundAs(err, "storage.set_account_active", "account", id)
	}
	return a, nil
}

// RecomputeBalance recalculates the cached balance from the entries and
// stores it. The account before the repair is returned alongside the result.
func (r *SQLiteRepository) RecomputeBalance(ctx context.Context, owner core.OwnerID, id int64) (before, after core.Account, err error) {
	const op = "storage.recompute_balance"
	err = r.InTx(ctx, func(q *Queries) error {
		var err error
		before, err = q.GetAccount(ctx, owner, id)
		if err != nil {
			return notFoundAs(err, op, "account", id)
		}
		sum, err := q.SumAccountEntries(ctx, owner, id)
		if err != nil {
			return mapError(op, err)
		}
		if err := q.SetAccountBalance(ctx, owner, id, before.InitialBalance.Cents+sum); err != nil {
			return mapError(op, err)
		}
		after, err = q.GetAccount(ctx, owner, id)
		return mapError(op, err)
	})
	return before, after, err
}

// CreateTag inserts a tag; a case-insensitive name clash yields a Conflict.
func (r *SQLiteRepository) CreateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	const op = "storage.create_tag"
	var created core.Tag
	err := r.InTx(ctx, func(q *Queries) error {
		if err := q.EnsureOwner(ctx, t.OwnerID); err != nil {
			return mapError(op, err)
		}
		var err error
		created, err = q.InsertTag(ctx, t)
		if err != nil && core.KindOf(mapError(op, err)) == core.KindConflict {
			return core.WrapError(core.KindConflict, op, fmt.Errorf("tag %q already exists", t.Name))
		}
		return mapError(op, err)
	})
	return created, err
}

func (r *SQLiteRepository) ListTags(ctx context.Context, owner core.OwnerID) ([]core.Tag, error) {
	tags, err := r.queries.ListTags(ctx, owner)
	return tags, mapError("storage.list_tags", err)
}
