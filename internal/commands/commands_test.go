package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

const owner = core.OwnerID("alice")

func runCtl(t *testing.T, clk clock.Clock, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(clk)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedLedger creates a database with one monthly salary spec and one manual expense.
func seedLedger(t *testing.T) (string, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: owner, Name: "Home"})
	require.NoError(t, err)
	acc, err := repo.CreateAccount(ctx, core.Account{OwnerID: owner, Name: "Checking", Kind: core.AccountChecking, Active: true})
	require.NoError(t, err)
	spec, err := repo.CreateSpec(ctx, core.RecurrenceSpec{
		OwnerID:     owner,
		Description: "Salary",
		Amount:      core.Money{Cents: 250000},
		Kind:        core.KindIncome,
		Cadence:     core.CadenceMonthly,
		StartDate:   core.NewDate(2025, 1, 5),
		Status:      core.StatusActive,
		CategoryID:  cat.ID,
		AccountID:   acc.ID,
	})
	require.NoError(t, err)
	_, err = repo.CreateEntry(ctx, core.LedgerEntry{
		OwnerID:     owner,
		Description: "Rent",
		Amount:      core.Money{Cents: 90000},
		Kind:        core.KindExpense,
		Date:        core.NewDate(2025, 1, 10),
		CategoryID:  cat.ID,
		AccountID:   acc.ID,
	})
	require.NoError(t, err)
	return path, spec.ID
}

func TestMigrate_ReportsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	out, err := runCtl(t, clock.At(2025, 1, 1), "migrate", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
	assert.Contains(t, out, "dirty=false")
}

func TestMaterialize_AllSpecs(t *testing.T) {
	path, specID := seedLedger(t)

	out, err := runCtl(t, clock.At(2025, 1, 1), "materialize", "--db", path, "--date", "2025-03-06")
	require.NoError(t, err)
	assert.Contains(t, out, "as of 2025-03-06: specs 1, emitted 3, finalized 0, failed 0")

	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	page, err := repo.ListEntries(context.Background(), owner, core.EntryFilter{SpecID: specID})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)

	// A second run on the same day emits nothing new.
	out, err = runCtl(t, clock.At(2025, 1, 1), "materialize", "--db", path, "--date", "2025-03-06")
	require.NoError(t, err)
	assert.Contains(t, out, "emitted 0")
}

func TestMaterialize_SingleSpec(t *testing.T) {
	path, specID := seedLedger(t)

	out, err := runCtl(t, clock.At(2025, 2, 5), "materialize", "--db", path,
		"--owner", string(owner), "--spec", strconv.FormatInt(specID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01-05")
	assert.Contains(t, out, "2025-02-05")
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "emitted 2, finalized false")
}

func TestMaterialize_Validation(t *testing.T) {
	path, _ := seedLedger(t)

	_, err := runCtl(t, clock.At(2025, 1, 1), "materialize", "--db", path, "--date", "03/06/2025")
	assert.ErrorContains(t, err, "invalid --date")

	_, err = runCtl(t, clock.At(2025, 1, 1), "materialize", "--db", path, "--spec", "1")
	assert.ErrorContains(t, err, "--spec requires --owner")
}

func TestProject_ListsOccurrences(t *testing.T) {
	path, specID := seedLedger(t)

	out, err := runCtl(t, clock.At(2025, 1, 1), "project", "--db", path,
		"--owner", string(owner), "--spec", strconv.FormatInt(specID, 10), "--until", "2025-04-30")
	require.NoError(t, err)
	for _, d := range []string{"2025-01-05", "2025-02-05", "2025-03-05", "2025-04-05"} {
		assert.Contains(t, out, d)
	}
	assert.NotContains(t, out, "2025-05-05")
	assert.Contains(t, out, "income")
}

func TestProject_Errors(t *testing.T) {
	path, specID := seedLedger(t)

	_, err := runCtl(t, clock.At(2025, 1, 1), "project", "--db", path, "--owner", string(owner))
	assert.Error(t, err, "missing --spec")

	_, err = runCtl(t, clock.At(2025, 1, 1), "project", "--db", path,
		"--owner", "bob", "--spec", strconv.FormatInt(specID, 10))
	require.Error(t, err)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestReport_PrintsTables(t *testing.T) {
	path, _ := seedLedger(t)

	out, err := runCtl(t, clock.At(2025, 1, 31), "report", "--db", path,
		"--owner", string(owner), "--from", "2025-01-01", "--to", "2025-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "Report 2025-01-01 .. 2025-01-31")
	assert.Contains(t, out, "2025-01")
	assert.Contains(t, out, "900.00")
	assert.Contains(t, out, "By category")
	assert.Contains(t, out, "Home")
}

func TestReport_BadRange(t *testing.T) {
	path, _ := seedLedger(t)

	_, err := runCtl(t, clock.At(2025, 1, 31), "report", "--db", path,
		"--owner", string(owner), "--from", "2025-02-01", "--to", "2025-01-01")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
}
