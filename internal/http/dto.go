package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

// Amounts travel as decimal strings ("12.34"), dates as YYYY-MM-DD.

type EntryRequest struct {
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Kind        string  `json:"kind"`
	Date        string  `json:"date"`
	CategoryID  int64   `json:"category_id"`
	AccountID   int64   `json:"account_id"`
	TagIDs      []int64 `json:"tag_ids,omitempty"`
	Version     int64   `json:"version,omitempty"`
}

type EntryDTO struct {
	ID              int64   `json:"id"`
	Description     string  `json:"description"`
	Amount          string  `json:"amount"`
	Kind            string  `json:"kind"`
	Date            string  `json:"date"`
	CategoryID      int64   `json:"category_id"`
	AccountID       int64   `json:"account_id"`
	SpecID          *int64  `json:"spec_id,omitempty"`
	OccurrenceIndex int     `json:"occurrence_index,omitempty"`
	TagIDs          []int64 `json:"tag_ids"`
	Version         int64   `json:"version"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type EntryPageDTO struct {
	Entries []EntryDTO `json:"entries"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

type SpecRequest struct {
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Kind              string `json:"kind"`
	Cadence           string `json:"cadence"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date,omitempty"`
	TotalInstallments *int   `json:"total_installments,omitempty"`
	CategoryID        int64  `json:"category_id"`
	AccountID         int64  `json:"account_id"`
	Version           int64  `json:"version,omitempty"`
}

type SpecDTO struct {
	ID                  int64  `json:"id"`
	Description         string `json:"description"`
	Amount              string `json:"amount"`
	Kind                string `json:"kind"`
	Cadence             string `json:"cadence"`
	StartDate           string `json:"start_date"`
	EndDate             string `json:"end_date,omitempty"`
	TotalInstallments   *int   `json:"total_installments,omitempty"`
	InstallmentsEmitted int    `json:"installments_emitted"`
	LastEmittedDate     string `json:"last_emitted_date,omitempty"`
	Status              string `json:"status"`
	CategoryID          int64  `json:"category_id"`
	AccountID           int64  `json:"account_id"`
	Version             int64  `json:"version"`
}

type OccurrenceDTO struct {
	SpecID      int64  `json:"spec_id"`
	Index       int    `json:"index"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	CategoryID  int64  `json:"category_id"`
	AccountID   int64  `json:"account_id"`
}

type CategoryRequest struct {
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type ReparentRequest struct {
	ParentID *int64 `json:"parent_id"`
}

type CategoryDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type CategoryDeletionDTO struct {
	Deleted            CategoryDTO `json:"deleted"`
	Fallback           CategoryDTO `json:"fallback"`
	FallbackCreated    bool        `json:"fallback_created"`
	MovedEntries       int64       `json:"moved_entries"`
	MovedSpecs         int64       `json:"moved_specs"`
	ReparentedChildren int64       `json:"reparented_children"`
}

type AccountRequest struct {
	Name           string `json:"name"`
	Kind           string `json:"kind,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
}

type ActiveRequest struct {
	Active bool `json:"active"`
}

type AccountDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	InitialBalance string `json:"initial_balance"`
	CurrentBalance string `json:"current_balance"`
	Active         bool   `json:"active"`
}

type TagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type TagDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type MonthTotalDTO struct {
	Month   string `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type MatrixRowDTO struct {
	Key        string   `json:"key"`
	CategoryID int64    `json:"category_id,omitempty"`
	Cells      []string `json:"cells"`
	Total      string   `json:"total"`
}

type MatrixDTO struct {
	Months []string       `json:"months"`
	Rows   []MatrixRowDTO `json:"rows"`
}

type ReportDTO struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	GeneratedAt   string          `json:"generated_at"`
	HorizonMonths int             `json:"horizon_months"`
	Truncated     bool            `json:"truncated"`
	Monthly       []MonthTotalDTO `json:"monthly"`
	ByCategory    MatrixDTO       `json:"by_category"`
	ByDescription *MatrixDTO      `json:"by_description,omitempty"`
}

func invalid(op, format string, args ...any) error {
	return core.NewError(core.KindInvalidInput, op, fmt.Sprintf(format, args...))
}

// parseAmount reads a positive decimal amount into cents.
func parseAmount(op, s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, invalid(op, "invalid amount %q", s)
	}
	return core.Money{Cents: cents}, nil
}

// parseSignedAmount accepts negative and zero values, e.g. an overdrawn
// opening balance.
func parseSignedAmount(op, s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Money{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return core.Money{}, invalid(op, "invalid amount %q", s)
	}
	return core.Money{Cents: d.Shift(2).Round(0).IntPart()}, nil
}

func parseOptionalDate(op, field, s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, invalid(op, "invalid %s %q: want YYYY-MM-DD", field, s)
	}
	return d, nil
}

func (req EntryRequest) toEntry(owner core.OwnerID) (core.LedgerEntry, error) {
	const op = "http.entry"
	amount, err := parseAmount(op, req.Amount)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.LedgerEntry{}, invalid(op, "%v", err)
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.LedgerEntry{}, invalid(op, "invalid date %q: want YYYY-MM-DD", req.Date)
	}
	return core.LedgerEntry{
		OwnerID:     owner,
		Description: strings.TrimSpace(req.Description),
		Amount:      amount,
		Kind:        kind,
		Date:        date,
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
		TagIDs:      req.TagIDs,
		Version:     req.Version,
	}, nil
}

func (req SpecRequest) toSpec(owner core.OwnerID) (core.RecurrenceSpec, error) {
	const op = "http.spec"
	amount, err := parseAmount(op, req.Amount)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.RecurrenceSpec{}, invalid(op, "%v", err)
	}
	cadence, err := core.ParseCadence(req.Cadence)
	if err != nil {
		return core.RecurrenceSpec{}, core.NewError(core.KindInvalidSpec, op, err.Error())
	}
	start, err := parseOptionalDate(op, "start_date", req.StartDate)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	end, err := parseOptionalDate(op, "end_date", req.EndDate)
	if err != nil {
		return core.RecurrenceSpec{}, err
	}
	return core.RecurrenceSpec{
		OwnerID:           owner,
		Description:       strings.TrimSpace(req.Description),
		Amount:            amount,
		Kind:              kind,
		Cadence:           cadence,
		StartDate:         start,
		EndDate:           end,
		TotalInstallments: req.TotalInstallments,
		CategoryID:        req.CategoryID,
		AccountID:         req.AccountID,
		Version:           req.Version,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toEntryDTO(e core.LedgerEntry) EntryDTO {
	tags := e.TagIDs
	if tags == nil {
		tags = []int64{}
	}
	return EntryDTO{
		ID:              e.ID,
		Description:     e.Description,
		Amount:          e.Amount.String(),
		Kind:            e.Kind.String(),
		Date:            e.Date.String(),
		CategoryID:      e.CategoryID,
		AccountID:       e.AccountID,
		SpecID:          e.SpecID,
		OccurrenceIndex: e.OccurrenceIndex,
		TagIDs:          tags,
		Version:         e.Version,
		CreatedAt:       formatTime(e.CreatedAt),
		UpdatedAt:       formatTime(e.UpdatedAt),
	}
}

func toSpecDTO(s core.RecurrenceSpec) SpecDTO {
	return SpecDTO{
		ID:                  s.ID,
		Description:         s.Description,
		Amount:              s.Amount.String(),
		Kind:                s.Kind.String(),
		Cadence:             s.Cadence.String(),
		StartDate:           s.StartDate.String(),
		EndDate:             s.EndDate.String(),
		TotalInstallments:   s.TotalInstallments,
		InstallmentsEmitted: s.InstallmentsEmitted,
		LastEmittedDate:     s.LastEmittedDate.String(),
		Status:              s.Status.String(),
		CategoryID:          s.CategoryID,
		AccountID:           s.AccountID,
		Version:             s.Version,
	}
}

func toOccurrenceDTO(o core.Occurrence) OccurrenceDTO {
	return OccurrenceDTO{
		SpecID:      o.SpecID,
		Index:       o.Index,
		Date:        o.Date.String(),
		Description: o.Description,
		Amount:      o.Amount.String(),
		Kind:        o.Kind.String(),
		CategoryID:  o.CategoryID,
		AccountID:   o.AccountID,
	}
}

func toCategoryDTO(c core.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Color: c.Color, ParentID: c.ParentID}
}

func toCategoryDeletionDTO(d storage.CategoryDeletion) CategoryDeletionDTO {
	return CategoryDeletionDTO{
		Deleted:            toCategoryDTO(d.Deleted),
		Fallback:           toCategoryDTO(d.Fallback),
		FallbackCreated:    d.FallbackCreated,
		MovedEntries:       d.MovedEntries,
		MovedSpecs:         d.MovedSpecs,
		ReparentedChildren: d.ReparentedKids,
	}
}

func toAccountDTO(a core.Account) AccountDTO {
	return AccountDTO{
		ID:             a.ID,
		Name:           a.Name,
		Kind:           string(a.Kind),
		InitialBalance: a.InitialBalance.String(),
		CurrentBalance: a.CurrentBalance.String(),
		Active:         a.Active,
	}
}

func toTagDTO(t core.Tag) TagDTO {
	return TagDTO{ID: t.ID, Name: t.Name, Color: t.Color}
}

func toMatrixDTO(m core.MonthMatrix) MatrixDTO {
	out := MatrixDTO{Months: make([]string, len(m.Months)), Rows: make([]MatrixRowDTO, len(m.Rows))}
	for i, ym := range m.Months {
		out.Months[i] = ym.String()
	}
	for i, row := range m.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		out.Rows[i] = MatrixRowDTO{Key: row.Key, CategoryID: row.CategoryID, Cells: cells, Total: row.Total.String()}
	}
	return out
}

func toReportDTO(r core.Report) ReportDTO {
	out := ReportDTO{
		From:          r.From.String(),
		To:            r.To.String(),
		GeneratedAt:   formatTime(r.GeneratedAt),
		HorizonMonths: r.HorizonMonths,
		Truncated:     r.Truncated,
		Monthly:       make([]MonthTotalDTO, len(r.Monthly)),
		ByCategory:    toMatrixDTO(r.ByCategory),
	}
	for i, m := range r.Monthly {
		out.Monthly[i] = MonthTotalDTO{
			Month:   m.Month.String(),
			Income:  m.Income.String(),
			Expense: m.Expense.String(),
			Net:     core.FormatCents(m.Net()),
		}
	}
	if r.ByDescription != nil {
		d := toMatrixDTO(*r.ByDescription)
		out.ByDescription = &d
	}
	return out
}
