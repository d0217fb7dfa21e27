package core

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestEntryValidate(t *testing.T) {
	good := LedgerEntry{
		OwnerID:     "o1",
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
		Kind:        KindExpense,
		CategoryID:  1,
		AccountID:   1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := []func(e *LedgerEntry){
		func(e *LedgerEntry) { e.OwnerID = "" },
		func(e *LedgerEntry) { e.Date = Date{} },
		func(e *LedgerEntry) { e.Description = "  " },
		func(e *LedgerEntry) { e.Amount = Money{} },
		func(e *LedgerEntry) { e.Kind = KindUnknown },
		func(e *LedgerEntry) { e.CategoryID = 0 },
		func(e *LedgerEntry) { e.AccountID = 0 },
	}
	for i, m := range mutate {
		e := good
		m(&e)
		err := e.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if KindOf(err) != KindInvalidInput {
			t.Fatalf("case %d expected invalid_input, got %s", i, KindOf(err))
		}
	}
}

func TestSpecValidate(t *testing.T) {
	base := RecurrenceSpec{
		OwnerID:     "o1",
		Description: "rent",
		Amount:      Money{Cents: 90000},
		Kind:        KindExpense,
		Cadence:     CadenceMonthly,
		StartDate:   NewDate(2025, 1, 5),
		Status:      StatusActive,
		CategoryID:  1,
		AccountID:   1,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *RecurrenceSpec)
	}{
		{"missing start", func(s *RecurrenceSpec) { s.StartDate = Date{} }},
		{"end before start", func(s *RecurrenceSpec) { s.EndDate = NewDate(2024, 12, 31) }},
		{"unknown cadence", func(s *RecurrenceSpec) { s.Cadence = CadenceUnknown }},
		{"zero total", func(s *RecurrenceSpec) { s.TotalInstallments = intPtr(0) }},
		{"total below emitted", func(s *RecurrenceSpec) {
			s.TotalInstallments = intPtr(2)
			s.InstallmentsEmitted = 3
		}},
		{"zero amount", func(s *RecurrenceSpec) { s.Amount = Money{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSpec) {
				t.Fatalf("expected invalid spec, got %v", err)
			}
		})
	}

	t.Run("end equal to start is allowed", func(t *testing.T) {
		s := base
		s.EndDate = s.StartDate
		if err := s.Validate(); err != nil {
			t.Fatalf("expected ok, got %v", err)
		}
	})
}

func TestSpecCheckCounters(t *testing.T) {
	s := RecurrenceSpec{ID: 7, TotalInstallments: intPtr(3), InstallmentsEmitted: 4}
	if err := s.CheckCounters(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	s.InstallmentsEmitted = 3
	if err := s.CheckCounters(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !s.Exhausted() {
		t.Fatalf("expected exhausted spec")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusActive, StatusFinalized, true},
		{StatusPaused, StatusFinalized, true},
		{StatusFinalized, StatusActive, false},
		{StatusFinalized, StatusPaused, false},
		{StatusActive, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			_, err := tt.from.Transition(tt.to)
			if tt.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	if c, err := ParseCadence("BIWEEKLY"); err != nil || c != CadenceBiweekly {
		t.Fatalf("ParseCadence = %v, %v", c, err)
	}
	if _, err := ParseCadence("daily"); err == nil {
		t.Fatalf("expected error for unsupported cadence")
	}
	if k, err := ParseKind("Income"); err != nil || k != KindIncome {
		t.Fatalf("ParseKind = %v, %v", k, err)
	}
	if s, err := ParseStatus("paused"); err != nil || s != StatusPaused {
		t.Fatalf("ParseStatus = %v, %v", s, err)
	}
}

func TestMonthsInRange(t *testing.T) {
	months := MonthsInRange(NewDate(2024, 11, 15), NewDate(2025, 2, 1))
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(months) != len(want) {
		t.Fatalf("got %v", months)
	}
	for i, m := range months {
		if m.String() != want[i] {
			t.Fatalf("month %d = %s, want %s", i, m, want[i])
		}
	}
	if got := MonthsBetween(NewDate(2025, 4, 15), NewDate(2025, 12, 31)); got != 8 {
		t.Fatalf("MonthsBetween = %d, want 8", got)
	}
}

func TestErrorKindOf(t *testing.T) {
	err := NotFound("entry.get", "entry", 3)
	wrapped := errors.Join(errors.New("context"), err)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("KindOf = %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("plain errors should be internal")
	}
	if !IsRetryable(WrapError(KindStorageUnavailable, "op", errors.New("busy"))) {
		t.Fatalf("storage unavailable should be retryable")
	}
}
