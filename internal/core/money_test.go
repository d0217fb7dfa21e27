package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	valid := map[string]int64{
		"1":      100,
		"1.0":    100,
		"1.23":   123,
		"1,23":   123,
		"0.01":   1,
		"1.005":  101,
		" 2.50 ": 250,
		"0.005":  1,
		"1000":   100000,
	}
	for in, want := range valid {
		t.Run("valid "+in, func(t *testing.T) {
			got, err := ParseDecimalToCents(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", in, got, want)
			}
		})
	}

	invalid := []string{"-1", "+1", "1e3", "0", "0.004", "abc", "1.2.3", "", "99999999999999999999"}
	for _, in := range invalid {
		t.Run("invalid "+in, func(t *testing.T) {
			if _, err := ParseDecimalToCents(in); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseDecimalToCents(%q) err = %v, want ErrInvalidAmount", in, err)
			}
		})
	}
}

func TestMoneyFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"string", Money{Cents: 123456}.String(), "1234.56"},
		{"negative cents", FormatCents(-5), "-0.05"},
		{"zero", Money{}.String(), "0.00"},
		{"decimal", Money{Cents: 7}.Decimal().String(), "0.07"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	if got := (Money{Cents: 250}).Signed(KindExpense); got != -250 {
		t.Errorf("Signed(expense) = %d", got)
	}
	if got := (Money{Cents: 250}).Signed(KindIncome); got != 250 {
		t.Errorf("Signed(income) = %d", got)
	}
}
