package memory

import (
	"context"
	"testing"

	"budgetbook/internal/core"
	ports "budgetbook/internal/sheets"
)

func TestStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Upsert(ctx, ports.Row{EntryID: 7, Description: "Rent", Kind: core.KindExpense, Amount: core.Money{Cents: 100}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	ref, err = s.Upsert(ctx, ports.Row{EntryID: 3, Description: "Salary"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}

	// replacing keeps the position
	ref, _ = s.Upsert(ctx, ports.Row{EntryID: 7, Description: "Rent (fixed)"})
	if ref != "mem:1" {
		t.Errorf("replace ref = %q, want mem:1", ref)
	}
	if r, _ := s.Get(7); r.Description != "Rent (fixed)" {
		t.Errorf("row not replaced: %+v", r)
	}

	if err := s.Delete(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, 99); err != nil {
		t.Fatalf("deleting a missing row: %v", err)
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0].EntryID != 3 {
		t.Errorf("Rows() = %+v", rows)
	}

	if _, err := s.Upsert(ctx, ports.Row{}); err == nil {
		t.Error("expected error for zero entry id")
	}
}
