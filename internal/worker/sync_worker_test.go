package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/sheets"
	"budgetbook/internal/sheets/memory"
	"budgetbook/internal/storage"
)

const owner = core.OwnerID("alice")

type env struct {
	repo   *storage.SQLiteRepository
	mirror *memory.Store
	worker *SyncWorker
	cat    core.Category
	acc    core.Account
}

func newEnv(t *testing.T) env {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: owner, Name: "Groceries"})
	require.NoError(t, err)
	acc, err := repo.CreateAccount(ctx, core.Account{OwnerID: owner, Name: "Wallet", Kind: core.AccountCash, Active: true})
	require.NoError(t, err)

	mirror := memory.New()
	return env{repo: repo, mirror: mirror, worker: NewSyncWorker(repo, mirror, 2), cat: cat, acc: acc}
}

func (e env) entry(t *testing.T, desc string, cents int64, day int) core.LedgerEntry {
	t.Helper()
	created, err := e.repo.CreateEntry(context.Background(), core.LedgerEntry{
		OwnerID:     owner,
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        core.KindExpense,
		Date:        core.NewDate(2025, 3, day),
		CategoryID:  e.cat.ID,
		AccountID:   e.acc.ID,
	})
	require.NoError(t, err)
	return created
}

func event(t amqp.EventType, entryID int64) *amqp.EntryEvent {
	return amqp.NewEntryEvent(t, string(owner), entryID, 1)
}

func TestHandleEvent_CreatedUpsertsRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.entry(t, "Market", 1250, 4)

	require.NoError(t, e.worker.HandleEvent(ctx, event(amqp.EntryCreated, created.ID)))

	row, ok := e.mirror.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Market", row.Description)
	assert.Equal(t, "Groceries", row.Category)
	assert.Equal(t, "Wallet", row.Account)
	assert.Equal(t, "-12.50", row.Values()[5])
}

func TestHandleEvent_UpdatedReplacesRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.entry(t, "Market", 1250, 4)
	require.NoError(t, e.worker.HandleEvent(ctx, event(amqp.EntryCreated, created.ID)))

	created.Description = "Farmers market"
	updated, err := e.repo.UpdateEntry(ctx, created)
	require.NoError(t, err)
	require.NoError(t, e.worker.HandleEvent(ctx, event(amqp.EntryUpdated, updated.ID)))

	assert.Len(t, e.mirror.Rows(), 1)
	row, _ := e.mirror.Get(created.ID)
	assert.Equal(t, "Farmers market", row.Description)
}

func TestHandleEvent_DeletedClearsRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.entry(t, "Market", 1250, 4)
	require.NoError(t, e.worker.HandleEvent(ctx, event(amqp.EntryCreated, created.ID)))

	_, err := e.repo.DeleteEntry(ctx, owner, created.ID)
	require.NoError(t, err)
	require.NoError(t, e.worker.HandleEvent(ctx, event(amqp.EntryDeleted, created.ID)))

	_, ok := e.mirror.Get(created.ID)
	assert.False(t, ok)
}

func TestHandleEvent_CreatedForMissingEntry(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.worker.HandleEvent(context.Background(), event(amqp.EntryCreated, 999)))
	assert.Empty(t, e.mirror.Rows())
}

func TestHandleEvent_OtherOwnerIsNotVisible(t *testing.T) {
	e := newEnv(t)
	created := e.entry(t, "Market", 1250, 4)
	ev := amqp.NewEntryEvent(amqp.EntryCreated, "mallory", created.ID, 1)

	require.NoError(t, e.worker.HandleEvent(context.Background(), ev))
	assert.Empty(t, e.mirror.Rows())
}

type failingMirror struct{ sheets.EntryMirror }

func (failingMirror) Upsert(context.Context, sheets.Row) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleEvent_MirrorFailureIsReturned(t *testing.T) {
	e := newEnv(t)
	created := e.entry(t, "Market", 1250, 4)
	w := NewSyncWorker(e.repo, failingMirror{}, 10)

	err := w.HandleEvent(context.Background(), event(amqp.EntryCreated, created.ID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestBackfill_PagesThroughEntries(t *testing.T) {
	e := newEnv(t)
	for day := 1; day <= 5; day++ {
		e.entry(t, "Bread", int64(100*day), day)
	}

	synced, failed, err := e.worker.Backfill(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 5, synced)
	assert.Zero(t, failed)
	assert.Len(t, e.mirror.Rows(), 5)
}
