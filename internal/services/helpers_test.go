package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

const alice = core.OwnerID("alice")

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type fixture struct {
	category core.Category
	account  core.Account
}

func seed(t *testing.T, repo *storage.SQLiteRepository, owner core.OwnerID) fixture {
	t.Helper()
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: owner, Name: "Home"})
	require.NoError(t, err)
	acc, err := repo.CreateAccount(ctx, core.Account{
		OwnerID: owner, Name: "Checking", Kind: core.AccountChecking, Active: true,
	})
	require.NoError(t, err)
	return fixture{category: cat, account: acc}
}

func createSpec(t *testing.T, repo *storage.SQLiteRepository, s core.RecurrenceSpec) core.RecurrenceSpec {
	t.Helper()
	created, err := repo.CreateSpec(context.Background(), s)
	require.NoError(t, err)
	return created
}

func specFor(fx fixture, owner core.OwnerID, desc string, c core.Cadence, start core.Date, cents int64, kind core.Kind) core.RecurrenceSpec {
	return core.RecurrenceSpec{
		OwnerID:     owner,
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Cadence:     c,
		StartDate:   start,
		Status:      core.StatusActive,
		CategoryID:  fx.category.ID,
		AccountID:   fx.account.ID,
	}
}

func specEntries(t *testing.T, repo *storage.SQLiteRepository, owner core.OwnerID, specID int64) []core.LedgerEntry {
	t.Helper()
	page, err := repo.ListEntries(context.Background(), owner, core.EntryFilter{SpecID: specID})
	require.NoError(t, err)
	return page.Entries
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.EntryEvent
	err    error
}

func (p *recordingPublisher) PublishEntryEvent(_ context.Context, ev *amqp.EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
