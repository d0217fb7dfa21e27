package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// OwnerID identifies the external principal that owns a row. Every store
	// and aggregator operation is scoped by it.
	OwnerID string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	LedgerEntry struct {
		ID              int64
		OwnerID         OwnerID
		Description     string
		Amount          Money
		Kind            Kind
		Date            Date
		CategoryID      int64
		AccountID       int64
		SpecID          *int64 // set when the entry was materialized from a recurrence
		OccurrenceIndex int    // 1-based; zero for manual entries
		TagIDs          []int64
		Version         int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	RecurrenceSpec struct {
		ID                  int64
		OwnerID             OwnerID
		Description         string
		Amount              Money
		Kind                Kind
		Cadence             Cadence
		StartDate           Date
		EndDate             Date // zero means open-ended
		TotalInstallments   *int // nil means open-ended
		InstallmentsEmitted int
		LastEmittedDate     Date // zero until the first occurrence is materialized
		Status              Status
		CategoryID          int64
		AccountID           int64
		Version             int64
		CreatedAt           time.Time
		UpdatedAt           time.Time
	}

	Category struct {
		ID        int64
		OwnerID   OwnerID
		Name      string
		Color     string
		ParentID  *int64
		CreatedAt time.Time
	}

	Account struct {
		ID             int64
		OwnerID        OwnerID
		Name           string
		Kind           AccountKind
		InitialBalance Money
		CurrentBalance Money
		Active         bool
		CreatedAt      time.Time
	}

	Tag struct {
		ID      int64
		OwnerID OwnerID
		Name    string
		Color   string
	}
)

const maxDescriptionLen = 200

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingOwner     = errors.New("missing owner")
	ErrMissingCategory  = errors.New("missing category")
	ErrMissingAccount   = errors.New("missing account")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar day as seen in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// MonthKey returns the (year, month) bucket of the date.
func (d Date) MonthKey() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the amount with the sign implied by kind.
func (m Money) Signed(k Kind) int64 {
	if k == KindExpense {
		return -m.Cents
	}
	return m.Cents
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	const op = "entry.validate"
	if e.OwnerID == "" {
		return Invalid(op, ErrMissingOwner)
	}
	if err := e.Date.Validate(); err != nil {
		return Invalid(op, err)
	}
	if err := validateDescription(e.Description); err != nil {
		return Invalid(op, err)
	}
	if err := e.Amount.Validate(); err != nil {
		return Invalid(op, err)
	}
	if !e.Kind.IsValid() {
		return Invalid(op, fmt.Errorf("invalid kind %q", e.Kind))
	}
	if e.CategoryID <= 0 {
		return Invalid(op, ErrMissingCategory)
	}
	if e.AccountID <= 0 {
		return Invalid(op, ErrMissingAccount)
	}
	return nil
}

// Validate checks a recurrence spec before it is created or updated.
// Failures carry KindInvalidSpec.
func (s RecurrenceSpec) Validate() error {
	const op = "spec.validate"
	if s.OwnerID == "" {
		return NewError(KindInvalidSpec, op, ErrMissingOwner.Error())
	}
	if !s.Cadence.IsValid() {
		return NewError(KindInvalidSpec, op, "invalid cadence")
	}
	if s.StartDate.IsZero() {
		return NewError(KindInvalidSpec, op, "start date is required")
	}
	if err := s.StartDate.Validate(); err != nil {
		return NewError(KindInvalidSpec, op, "invalid start date: "+err.Error())
	}
	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return NewError(KindInvalidSpec, op, "end date must not be before start date")
	}
	if err := validateDescription(s.Description); err != nil {
		return NewError(KindInvalidSpec, op, err.Error())
	}
	if err := s.Amount.Validate(); err != nil {
		return NewError(KindInvalidSpec, op, err.Error())
	}
	if !s.Kind.IsValid() {
		return NewError(KindInvalidSpec, op, "invalid kind")
	}
	if s.TotalInstallments != nil {
		if *s.TotalInstallments < 1 {
			return NewError(KindInvalidSpec, op, "total installments must be at least 1")
		}
		if s.InstallmentsEmitted > *s.TotalInstallments {
			return NewError(KindInvalidSpec, op,
				fmt.Sprintf("total installments %d below already emitted %d", *s.TotalInstallments, s.InstallmentsEmitted))
		}
	}
	if s.InstallmentsEmitted < 0 {
		return NewError(KindInvariant, op, "negative emitted counter")
	}
	if s.CategoryID <= 0 {
		return NewError(KindInvalidSpec, op, ErrMissingCategory.Error())
	}
	if s.AccountID <= 0 {
		return NewError(KindInvalidSpec, op, ErrMissingAccount.Error())
	}
	return nil
}

// Exhausted reports whether every installment of a bounded spec has been emitted.
func (s RecurrenceSpec) Exhausted() bool {
	return s.TotalInstallments != nil && s.InstallmentsEmitted >= *s.TotalInstallments
}

// CheckCounters returns an Invariant error when the emitted counter is out of range.
func (s RecurrenceSpec) CheckCounters() error {
	if s.InstallmentsEmitted < 0 {
		return NewError(KindInvariant, "spec.counters", fmt.Sprintf("spec %d has negative emitted counter", s.ID))
	}
	if s.TotalInstallments != nil && s.InstallmentsEmitted > *s.TotalInstallments {
		return NewError(KindInvariant, "spec.counters",
			fmt.Sprintf("spec %d emitted %d of %d installments", s.ID, s.InstallmentsEmitted, *s.TotalInstallments))
	}
	return nil
}

func (c Category) Validate() error {
	if c.OwnerID == "" {
		return Invalid("category.validate", ErrMissingOwner)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("category.validate", ErrEmptyName)
	}
	if c.ParentID != nil && *c.ParentID == c.ID && c.ID != 0 {
		return NewError(KindCycleWouldForm, "category.validate", "category cannot be its own parent")
	}
	return nil
}

func (a Account) Validate() error {
	if a.OwnerID == "" {
		return Invalid("account.validate", ErrMissingOwner)
	}
	if strings.TrimSpace(a.Name) == "" {
		return Invalid("account.validate", ErrEmptyName)
	}
	if !a.Kind.IsValid() {
		return Invalid("account.validate", fmt.Errorf("invalid account kind %q", a.Kind))
	}
	return nil
}

func (t Tag) Validate() error {
	if t.OwnerID == "" {
		return Invalid("tag.validate", ErrMissingOwner)
	}
	if strings.TrimSpace(t.Name) == "" {
		return Invalid("tag.validate", ErrEmptyName)
	}
	return nil
}
