package storage

import (
	"context"

	"budgetbook/internal/core"
)

const accountColumns = `id, owner_id, name, kind, initial_balance_cents, current_balance_cents, active, created_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a         core.Account
		owner     string
		kind      string
		createdAt sqlTime
	)
	if err := row.Scan(&a.ID, &owner, &a.Name, &kind, &a.InitialBalance.Cents,
		&a.CurrentBalance.Cents, &a.Active, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.OwnerID = core.OwnerID(owner)
	a.Kind = core.AccountKind(kind)
	a.CreatedAt = createdAt.Time
	return a, nil
}

const insertAccount = `
INSERT INTO accounts (owner_id, name, kind, initial_balance_cents, current_balance_cents, active)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, insertAccount,
		string(a.OwnerID), a.Name, string(a.Kind), a.InitialBalance.Cents, a.InitialBalance.Cents, a.Active))
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND owner_id = ?`

func (q *Queries) GetAccount(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id, string(owner)))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = ? ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context, owner core.OwnerID) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const adjustAccountBalance = `
UPDATE accounts SET current_balance_cents = current_balance_cents + ? WHERE id = ? AND owner_id = ?`

// AdjustAccountBalance adds delta cents to the cached balance.
func (q *Queries) AdjustAccountBalance(ctx context.Context, owner core.OwnerID, id int64, delta int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, adjustAccountBalance, delta, id, string(owner))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const sumAccountEntries = `
SELECT COALESCE(SUM(CASE kind WHEN 'income' THEN amount_cents ELSE -amount_cents END), 0)
FROM entries WHERE owner_id = ? AND account_id = ?`

func (q *Queries) SumAccountEntries(ctx context.Context, owner core.OwnerID, id int64) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumAccountEntries, string(owner), id).Scan(&sum)
	return sum, err
}

const setAccountBalance = `UPDATE accounts SET current_balance_cents = ? WHERE id = ? AND owner_id = ?`

func (q *Queries) SetAccountBalance(ctx context.Context, owner core.OwnerID, id int64, cents int64) error {
	_, err := q.db.ExecContext(ctx, setAccountBalance, cents, id, string(owner))
	return err
}

const setAccountActive = `UPDATE accounts SET active = ? WHERE id = ? AND owner_id = ? RETURNING ` + accountColumns

func (q *Queries) SetAccountActive(ctx context.Context, owner core.OwnerID, id int64, active bool) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, setAccountActive, active, id, string(owner)))
}
