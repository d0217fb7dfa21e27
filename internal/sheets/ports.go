package sheets

import (
	"context"
	"strconv"

	"budgetbook/internal/core"
)

// Row is the mirrored form of one ledger entry.
type Row struct {
	EntryID     int64
	OwnerID     core.OwnerID
	Date        core.Date
	Description string
	Kind        core.Kind
	Amount      core.Money
	Category    string
	Account     string
	SpecID      *int64
}

// Header is the column layout of a mirror sheet.
var Header = []string{"ID", "Owner", "Date", "Description", "Kind", "Amount", "Category", "Account", "Spec"}

// Values renders the row in Header order. Amounts are signed decimals.
func (r Row) Values() []any {
	spec := ""
	if r.SpecID != nil {
		spec = strconv.FormatInt(*r.SpecID, 10)
	}
	return []any{
		strconv.FormatInt(r.EntryID, 10),
		string(r.OwnerID),
		r.Date.String(),
		r.Description,
		r.Kind.String(),
		core.FormatCents(r.Amount.Signed(r.Kind)),
		r.Category,
		r.Account,
		spec,
	}
}

// Ports for outbound adapters.
type (
	// EntryMirror keeps an external copy of the ledger, one row per entry id.
	EntryMirror interface {
		// Upsert writes the row for r.EntryID, replacing an existing one.
		Upsert(ctx context.Context, r Row) (rowRef string, err error)
		// Delete clears the row of entryID. A missing row is not an error.
		Delete(ctx context.Context, entryID int64) error
	}
)
