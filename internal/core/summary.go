package core

import (
	"fmt"
	"time"
)

// YearMonth is a calendar month bucket.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Before(o YearMonth) bool {
	return ym.Year < o.Year || (ym.Year == o.Year && ym.Month < o.Month)
}

// MonthsBetween returns the number of month boundaries from a to b (negative when b is earlier).
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + (b.Month() - a.Month())
}

// MonthsInRange lists every month touched by [from, to].
func MonthsInRange(from, to Date) []YearMonth {
	if to.Before(from) {
		return nil
	}
	var out []YearMonth
	last := to.MonthKey()
	for ym := from.MonthKey(); !last.Before(ym); ym = ym.Next() {
		out = append(out, ym)
	}
	return out
}

// Occurrence is one scheduled instance of a recurrence spec, either persisted
// (materialized) or ephemeral (projected).
type Occurrence struct {
	SpecID      int64
	Index       int // 1-based
	Date        Date
	Description string
	Amount      Money
	Kind        Kind
	CategoryID  int64
	AccountID   int64
}

// MonthTotal is the income/expense sum of one month.
type MonthTotal struct {
	Month   YearMonth
	Income  Money
	Expense Money
}

// Net returns income minus expense.
func (m MonthTotal) Net() int64 {
	return m.Income.Cents - m.Expense.Cents
}

// MatrixRow is one row of a month matrix report.
type MatrixRow struct {
	Key        string // category name or entry description
	CategoryID int64  // set for category rows
	Cells      []Money
	Total      Money
}

// MonthMatrix is a rows x months table of absolute sums.
type MonthMatrix struct {
	Months []YearMonth
	Rows   []MatrixRow
}

// Report is the result of a report aggregation request.
type Report struct {
	OwnerID       OwnerID
	From          Date
	To            Date
	GeneratedAt   time.Time
	HorizonMonths int
	Monthly       []MonthTotal
	ByCategory    MonthMatrix
	ByDescription *MonthMatrix // set when a root category was selected
	Truncated     bool         // projection stopped early because the request budget ran out
}

// EntryFilter narrows ListEntries. Zero values mean "no filter".
type EntryFilter struct {
	From       Date
	To         Date
	Kind       Kind
	CategoryID int64 // matches the category and its descendants
	AccountID  int64
	TagID      int64
	SpecID     int64
	Text       string // case-insensitive substring of the description
	Limit      int
	Offset     int
}

// EntryPage is one page of a filtered entry listing.
type EntryPage struct {
	Entries []LedgerEntry
	Total   int
	Limit   int
	Offset  int
}

// LedgerSnapshot is the state a report is computed from, read in one transaction.
type LedgerSnapshot struct {
	Entries    []LedgerEntry
	Specs      []RecurrenceSpec // ACTIVE specs of the owner
	Categories []Category
}
