package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/clock"
	"budgetbook/internal/core"
)

func newReportService(store ReportStore, clk clock.Clock) *ReportService {
	return NewReportService(store, NewProjector(0, 60), clk, 24, 60)
}

func expenseColumn(r core.Report) []int64 {
	out := make([]int64, len(r.Monthly))
	for i, m := range r.Monthly {
		out[i] = m.Expense.Cents
	}
	return out
}

func TestReport_InstallmentPurchase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)

	s := specFor(fx, alice, "Laptop", core.CadenceMonthly, core.NewDate(2025, 1, 10), 250, core.KindExpense)
	total := 12
	s.TotalInstallments = &total
	spec := createSpec(t, repo, s)

	today := core.NewDate(2025, 4, 15)
	_, err := NewRecurringProcessor(repo, NewProjector(0, 60), nil).MaterializeAll(ctx, today)
	require.NoError(t, err)

	r, err := newReportService(repo, clock.At(2025, 4, 15)).Report(ctx, alice, ReportRequest{
		From: core.NewDate(2025, 1, 1),
		To:   core.NewDate(2025, 12, 31),
	})
	require.NoError(t, err)

	require.Len(t, r.Monthly, 12)
	for i, cents := range expenseColumn(r) {
		assert.Equal(t, int64(250), cents, "month %d", i+1)
	}
	assert.Equal(t, 8, r.HorizonMonths)
	assert.False(t, r.Truncated)

	stored, err := repo.GetSpec(ctx, alice, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, stored.Status)
	assert.Equal(t, 4, stored.InstallmentsEmitted)

	require.Len(t, r.ByCategory.Rows, 1)
	assert.Equal(t, int64(3000), r.ByCategory.Rows[0].Total.Cents)
	assert.Nil(t, r.ByDescription)
}

func TestReport_CategoryRollup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)

	food, err := repo.CreateCategory(ctx, core.Category{OwnerID: alice, Name: "Food"})
	require.NoError(t, err)
	restaurants, err := repo.CreateCategory(ctx, core.Category{OwnerID: alice, Name: "Restaurants", ParentID: &food.ID})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, core.Category{OwnerID: alice, Name: "Groceries", ParentID: &food.ID})
	require.NoError(t, err)
	fastFood, err := repo.CreateCategory(ctx, core.Category{OwnerID: alice, Name: "FastFood", ParentID: &restaurants.ID})
	require.NoError(t, err)

	for _, e := range []struct {
		cat   int64
		cents int64
		desc  string
	}{
		{food.ID, 10, "Market"},
		{restaurants.ID, 20, "Dinner"},
		{fastFood.ID, 30, "Burger"},
		{fx.category.ID, 999, "Rent"},
	} {
		_, err := repo.CreateEntry(ctx, core.LedgerEntry{
			OwnerID: alice, Description: e.desc, Amount: core.Money{Cents: e.cents},
			Kind: core.KindExpense, Date: core.NewDate(2025, 2, 3),
			CategoryID: e.cat, AccountID: fx.account.ID,
		})
		require.NoError(t, err)
	}

	svc := newReportService(repo, clock.At(2025, 3, 1))
	r, err := svc.Report(ctx, alice, ReportRequest{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 31)})
	require.NoError(t, err)

	rows := map[string]int64{}
	for _, row := range r.ByCategory.Rows {
		rows[row.Key] = row.Total.Cents
	}
	assert.Equal(t, map[string]int64{"Home": 999, "Food": 60}, rows)

	r, err = svc.Report(ctx, alice, ReportRequest{
		From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 31), RootCategoryID: food.ID,
	})
	require.NoError(t, err)
	require.Len(t, r.ByCategory.Rows, 1)
	assert.Equal(t, int64(60), r.ByCategory.Rows[0].Total.Cents)
	assert.Equal(t, int64(60), r.Monthly[1].Expense.Cents)

	require.NotNil(t, r.ByDescription)
	var keys []string
	for _, row := range r.ByDescription.Rows {
		keys = append(keys, row.Key)
	}
	assert.Equal(t, []string{"Burger", "Dinner", "Market"}, keys)

	_, err = svc.Report(ctx, alice, ReportRequest{
		From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 31), RootCategoryID: restaurants.ID,
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Report(ctx, alice, ReportRequest{
		From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 31), RootCategoryID: 9999,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReport_PausedSpecDropsProjections(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)
	spec := createSpec(t, repo, specFor(fx, alice, "Gym", core.CadenceMonthly, core.NewDate(2025, 1, 5), 4000, core.KindExpense))

	_, err := NewRecurringProcessor(repo, NewProjector(0, 60), nil).MaterializeAll(ctx, core.NewDate(2025, 2, 10))
	require.NoError(t, err)

	svc := newReportService(repo, clock.At(2025, 2, 10))
	req := ReportRequest{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 6, 30)}

	r, err := svc.Report(ctx, alice, req)
	require.NoError(t, err)
	assert.Equal(t, []int64{4000, 4000, 4000, 4000, 4000, 4000}, expenseColumn(r))

	spec, err = repo.GetSpec(ctx, alice, spec.ID)
	require.NoError(t, err)
	spec.Status = core.StatusPaused
	_, err = repo.UpdateSpecState(ctx, spec)
	require.NoError(t, err)

	r, err = svc.Report(ctx, alice, req)
	require.NoError(t, err)
	assert.Equal(t, []int64{4000, 4000, 0, 0, 0, 0}, expenseColumn(r))
}

func TestReport_RealizedEntryWinsOverProjection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)
	spec := createSpec(t, repo, specFor(fx, alice, "Internet", core.CadenceMonthly, core.NewDate(2025, 1, 10), 100, core.KindExpense))

	_, err := NewRecurringProcessor(repo, NewProjector(0, 60), nil).MaterializeAll(ctx, core.NewDate(2025, 1, 15))
	require.NoError(t, err)
	require.Len(t, specEntries(t, repo, alice, spec.ID), 1)

	// Rewind the counter so projection proposes the January occurrence again.
	spec, err = repo.GetSpec(ctx, alice, spec.ID)
	require.NoError(t, err)
	spec.InstallmentsEmitted = 0
	spec.LastEmittedDate = core.Date{}
	_, err = repo.UpdateSpecState(ctx, spec)
	require.NoError(t, err)

	_, err = repo.CreateEntry(ctx, core.LedgerEntry{
		OwnerID: alice, Description: "Router", Amount: core.Money{Cents: 30}, Kind: core.KindExpense,
		Date: core.NewDate(2025, 1, 20), CategoryID: fx.category.ID, AccountID: fx.account.ID,
	})
	require.NoError(t, err)

	r, err := newReportService(repo, clock.At(2025, 1, 15)).Report(ctx, alice, ReportRequest{
		From: core.NewDate(2025, 1, 1),
		To:   core.NewDate(2025, 2, 28),
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{130, 100}, expenseColumn(r))
	require.Len(t, r.ByCategory.Rows, 1)
	assert.Equal(t, []int64{130, 100}, []int64{r.ByCategory.Rows[0].Cells[0].Cents, r.ByCategory.Rows[0].Cells[1].Cents})
	assert.Equal(t, int64(230), r.ByCategory.Rows[0].Total.Cents)
}

func TestReport_Horizon(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)
	createSpec(t, repo, specFor(fx, alice, "Salary", core.CadenceMonthly, core.NewDate(2025, 1, 1), 1000, core.KindIncome))

	svc := newReportService(repo, clock.At(2025, 1, 15))
	req := ReportRequest{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 12, 31)}

	two := 2
	req.HorizonMonths = &two
	r, err := svc.Report(ctx, alice, req)
	require.NoError(t, err)
	var income []int64
	for _, m := range r.Monthly {
		income = append(income, m.Income.Cents)
	}
	assert.Equal(t, []int64{1000, 1000, 1000, 0, 0, 0, 0, 0, 0, 0, 0, 0}, income)

	tooFar := 61
	req.HorizonMonths = &tooFar
	_, err = svc.Report(ctx, alice, req)
	assert.ErrorIs(t, err, core.ErrHorizonExceeded)

	_, err = svc.Report(ctx, alice, ReportRequest{From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestReport_TruncatedByIterationCap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, alice)
	createSpec(t, repo, specFor(fx, alice, "Coffee", core.CadenceWeekly, core.NewDate(2025, 1, 1), 300, core.KindExpense))

	svc := NewReportService(repo, NewProjector(3, 60), clock.At(2025, 1, 1), 24, 60)
	r, err := svc.Report(ctx, alice, ReportRequest{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 31)})
	require.NoError(t, err)
	assert.True(t, r.Truncated)
	assert.Equal(t, int64(900), r.Monthly[0].Expense.Cents)
}

type cancellingStore struct {
	ReportStore
	cancel context.CancelFunc
}

func (s cancellingStore) ReportSnapshot(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.LedgerSnapshot, error) {
	snap, err := s.ReportStore.ReportSnapshot(ctx, owner, f)
	s.cancel()
	return snap, err
}

func TestReport_TruncatedWhenBudgetExpires(t *testing.T) {
	repo := newTestRepo(t)
	fx := seed(t, repo, alice)
	createSpec(t, repo, specFor(fx, alice, "Salary", core.CadenceMonthly, core.NewDate(2025, 1, 1), 1000, core.KindIncome))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newReportService(cancellingStore{ReportStore: repo, cancel: cancel}, clock.At(2025, 1, 1))

	r, err := svc.Report(ctx, alice, ReportRequest{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 6, 30)})
	require.NoError(t, err)
	assert.True(t, r.Truncated)
	assert.Equal(t, int64(0), r.Monthly[0].Income.Cents)
}

func TestMergeItems_RealizedWins(t *testing.T) {
	jan := core.NewDate(2025, 1, 20)
	realized := []reportItem{{Date: jan, Amount: core.Money{Cents: 100}, Kind: core.KindExpense, CategoryID: 1, SpecID: 7}}
	projected := []reportItem{
		{Date: jan, Amount: core.Money{Cents: 100}, Kind: core.KindExpense, CategoryID: 1, SpecID: 7},
		{Date: core.NewDate(2025, 2, 20), Amount: core.Money{Cents: 100}, Kind: core.KindExpense, CategoryID: 1, SpecID: 7},
	}

	items := mergeItems(realized, projected)
	forest := core.NewForest([]core.Category{{ID: 1, OwnerID: alice, Name: "Home"}})
	monthly, matrix := aggregate(items, forest, core.NewDate(2025, 1, 1), core.NewDate(2025, 2, 28), 0)

	assert.Equal(t, int64(100), monthly[0].Expense.Cents)
	assert.Equal(t, int64(100), monthly[1].Expense.Cents)
	assert.Equal(t, int64(200), matrix.Rows[0].Total.Cents)
}

func TestMergeItems_ManualEntriesKeyByCategory(t *testing.T) {
	jan := core.NewDate(2025, 1, 20)
	realized := []reportItem{{Date: jan, Amount: core.Money{Cents: 50}, Kind: core.KindExpense, CategoryID: 1}}
	projected := []reportItem{{Date: jan, Amount: core.Money{Cents: 80}, Kind: core.KindExpense, CategoryID: 1, SpecID: 3}}

	assert.Len(t, mergeItems(realized, projected), 2)
}

func TestBaseDescription(t *testing.T) {
	tests := map[string]string{
		"Laptop — 3/12":    "Laptop",
		"Laptop":           "Laptop",
		"Rent — June":      "Rent — June",
		"A — b — 1/2":      "A — b",
		"Odd — 1/x":        "Odd — 1/x",
		"Plain 3/12":       "Plain 3/12",
	}
	for in, want := range tests {
		if got := BaseDescription(in); got != want {
			t.Errorf("BaseDescription(%q) = %q, want %q", in, got, want)
		}
	}
}
