package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"budgetbook/internal/calendar"
	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

// ReportRequest selects the range and filters of a report. Zero ids and
// kind mean "all"; a nil HorizonMonths uses the configured default.
type ReportRequest struct {
	From           core.Date
	To             core.Date
	AccountID      int64
	RootCategoryID int64
	Kind           core.Kind
	HorizonMonths  *int
}

type ReportStore interface {
	ReportSnapshot(ctx context.Context, owner core.OwnerID, f core.EntryFilter) (core.LedgerSnapshot, error)
}

// ReportService merges realized entries with projected occurrences of ACTIVE
// specs and aggregates them by month, root category and description.
type ReportService struct {
	store         ReportStore
	projector     Projector
	clock         clock.Clock
	defaultMonths int
	maxMonths     int
	logger        *log.Logger
}

func NewReportService(store ReportStore, projector Projector, clk clock.Clock, defaultMonths, maxMonths int) *ReportService {
	return &ReportService{
		store:         store,
		projector:     projector,
		clock:         clk,
		defaultMonths: defaultMonths,
		maxMonths:     maxMonths,
		logger:        log.Default(log.ComponentReport),
	}
}

// reportItem is a realized entry or a projected occurrence.
type reportItem struct {
	Date        core.Date
	Amount      core.Money
	Kind        core.Kind
	CategoryID  int64
	SpecID      int64 // zero for manual entries
	Description string
}

type dedupKey struct {
	ym       core.YearMonth
	spec     int64
	category int64
	kind     core.Kind
}

func (it reportItem) key() dedupKey {
	if it.SpecID != 0 {
		return dedupKey{ym: it.Date.MonthKey(), spec: it.SpecID}
	}
	return dedupKey{ym: it.Date.MonthKey(), category: it.CategoryID, kind: it.Kind}
}

func (s *ReportService) Report(ctx context.Context, owner core.OwnerID, req ReportRequest) (core.Report, error) {
	const op = "report.build"
	if req.From.IsZero() || req.To.IsZero() {
		return core.Report{}, core.NewError(core.KindInvalidInput, op, "from and to are required")
	}
	if req.To.Before(req.From) {
		return core.Report{}, core.NewError(core.KindInvalidInput, op, "to must not be before from")
	}
	if req.Kind != core.KindUnknown && !req.Kind.IsValid() {
		return core.Report{}, core.NewError(core.KindInvalidInput, op, "invalid kind")
	}

	now := s.clock.Now()
	today := core.DateOf(now)
	months, err := s.horizonMonths(today, req)
	if err != nil {
		return core.Report{}, err
	}
	horizonEnd := endOfMonth(calendar.AddMonthsClamped(today, months))
	if req.To.Before(horizonEnd) {
		horizonEnd = req.To
	}

	snap, err := s.store.ReportSnapshot(ctx, owner, core.EntryFilter{
		From:       req.From,
		To:         req.To,
		Kind:       req.Kind,
		CategoryID: req.RootCategoryID,
		AccountID:  req.AccountID,
	})
	if err != nil {
		return core.Report{}, fmt.Errorf("read ledger: %w", err)
	}

	forest := core.NewForest(snap.Categories)
	var subtree map[int64]bool
	if req.RootCategoryID != 0 {
		root, ok := forest.Get(req.RootCategoryID)
		if !ok {
			return core.Report{}, core.NotFound(op, "category", req.RootCategoryID)
		}
		if root.ParentID != nil {
			return core.Report{}, core.NewError(core.KindInvalidInput, op,
				fmt.Sprintf("category %d is not a root category", root.ID))
		}
		if subtree, err = forest.DescendantSet(root.ID); err != nil {
			return core.Report{}, err
		}
	}

	report := core.Report{
		OwnerID:       owner,
		From:          req.From,
		To:            req.To,
		GeneratedAt:   now,
		HorizonMonths: months,
	}

	realized := make([]reportItem, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		it := reportItem{
			Date: e.Date, Amount: e.Amount, Kind: e.Kind,
			CategoryID: e.CategoryID, Description: e.Description,
		}
		if e.SpecID != nil {
			it.SpecID = *e.SpecID
		}
		realized = append(realized, it)
	}

	var projected []reportItem
	for _, spec := range snap.Specs {
		if ctx.Err() != nil {
			report.Truncated = true
			s.logger.WarnContext(ctx, "Report projection cut short", log.FieldOwnerID, string(owner))
			break
		}
		if req.AccountID != 0 && spec.AccountID != req.AccountID {
			continue
		}
		if req.Kind != core.KindUnknown && spec.Kind != req.Kind {
			continue
		}
		if subtree != nil && !subtree[spec.CategoryID] {
			continue
		}
		plan, err := s.projector.Project(spec, horizonEnd)
		if err != nil {
			return core.Report{}, fmt.Errorf("project spec %d: %w", spec.ID, err)
		}
		if plan.Truncated {
			report.Truncated = true
		}
		for _, occ := range plan.Occurrences {
			if occ.Date.Before(req.From) || occ.Date.After(req.To) {
				continue
			}
			projected = append(projected, reportItem{
				Date: occ.Date, Amount: occ.Amount, Kind: occ.Kind,
				CategoryID: occ.CategoryID, SpecID: occ.SpecID, Description: occ.Description,
			})
		}
	}

	items := mergeItems(realized, projected)
	report.Monthly, report.ByCategory = aggregate(items, forest, req.From, req.To, req.RootCategoryID)
	if req.RootCategoryID != 0 {
		m := groupByDescription(items, req.From, req.To)
		report.ByDescription = &m
	}
	return report, nil
}

func (s *ReportService) horizonMonths(today core.Date, req ReportRequest) (int, error) {
	if req.HorizonMonths != nil {
		h := *req.HorizonMonths
		if h < 0 {
			return 0, core.NewError(core.KindInvalidInput, "report.horizon", "horizon must not be negative")
		}
		if h > s.maxMonths {
			return 0, core.NewError(core.KindHorizonExceeded, "report.horizon",
				fmt.Sprintf("horizon of %d months exceeds maximum of %d", h, s.maxMonths))
		}
		return h, nil
	}
	h := core.MonthsBetween(today, req.To)
	if h < 0 {
		h = 0
	}
	if h > s.defaultMonths {
		h = s.defaultMonths
	}
	return h, nil
}

func endOfMonth(d core.Date) core.Date {
	return core.NewDate(d.Year(), d.Month(), calendar.DaysIn(d.Year(), d.Time.Month()))
}

// mergeItems keeps every realized item and drops projected items whose
// dedup key is already covered by a realized one.
func mergeItems(realized, projected []reportItem) []reportItem {
	seen := make(map[dedupKey]bool, len(realized))
	for _, it := range realized {
		seen[it.key()] = true
	}
	out := make([]reportItem, 0, len(realized)+len(projected))
	out = append(out, realized...)
	for _, it := range projected {
		if seen[it.key()] {
			continue
		}
		out = append(out, it)
	}
	return out
}

// aggregate builds the monthly totals and the root category matrix. When
// root is set only that row is reported.
func aggregate(items []reportItem, forest *core.Forest, from, to core.Date, root int64) ([]core.MonthTotal, core.MonthMatrix) {
	months := core.MonthsInRange(from, to)
	col := make(map[core.YearMonth]int, len(months))
	monthly := make([]core.MonthTotal, len(months))
	for i, ym := range months {
		col[ym] = i
		monthly[i].Month = ym
	}

	roots := forest.Roots()
	rows := make([]core.MatrixRow, 0, len(roots))
	rowOf := make(map[int64]int, len(roots))
	for _, r := range roots {
		if root != 0 && r.ID != root {
			continue
		}
		rowOf[r.ID] = len(rows)
		rows = append(rows, core.MatrixRow{Key: r.Name, CategoryID: r.ID, Cells: make([]core.Money, len(months))})
	}
	rootOf := forest.RootIndex()

	for _, it := range items {
		c, ok := col[it.Date.MonthKey()]
		if !ok {
			continue
		}
		switch it.Kind {
		case core.KindIncome:
			monthly[c].Income.Cents += it.Amount.Cents
		case core.KindExpense:
			monthly[c].Expense.Cents += it.Amount.Cents
		}
		r, ok := rowOf[rootOf[it.CategoryID]]
		if !ok {
			continue
		}
		rows[r].Cells[c].Cents += it.Amount.Cents
		rows[r].Total.Cents += it.Amount.Cents
	}
	return monthly, core.MonthMatrix{Months: months, Rows: rows}
}

func groupByDescription(items []reportItem, from, to core.Date) core.MonthMatrix {
	months := core.MonthsInRange(from, to)
	col := make(map[core.YearMonth]int, len(months))
	for i, ym := range months {
		col[ym] = i
	}

	byKey := make(map[string]*core.MatrixRow)
	for _, it := range items {
		c, ok := col[it.Date.MonthKey()]
		if !ok {
			continue
		}
		k := BaseDescription(it.Description)
		row, ok := byKey[k]
		if !ok {
			row = &core.MatrixRow{Key: k, Cells: make([]core.Money, len(months))}
			byKey[k] = row
		}
		row.Cells[c].Cents += it.Amount.Cents
		row.Total.Cents += it.Amount.Cents
	}

	rows := make([]core.MatrixRow, 0, len(byKey))
	for _, r := range byKey {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return core.MonthMatrix{Months: months, Rows: rows}
}

// BaseDescription strips a trailing "N/TOTAL" installment suffix so all
// installments of a purchase share one row.
func BaseDescription(desc string) string {
	i := strings.LastIndex(desc, installmentSep)
	if i < 0 {
		return desc
	}
	n, total, ok := strings.Cut(desc[i+len(installmentSep):], "/")
	if !ok {
		return desc
	}
	if _, err := strconv.Atoi(n); err != nil {
		return desc
	}
	if _, err := strconv.Atoi(total); err != nil {
		return desc
	}
	return desc[:i]
}
