package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger operation results, consumed by the formatter
// ============================================================

// AddResult confirms a single persisted expense.
type AddResult struct {
	Amount   decimal.Decimal
	Category string
	Date     time.Time
}

// BatchItem is one successfully added entry of a batch.
type BatchItem struct {
	Amount   decimal.Decimal
	Category string
}

// BatchFailure is one entry of a batch that could not be saved.
type BatchFailure struct {
	Index    int
	Amount   *decimal.Decimal
	Category string
	Err      error
}

// BatchResult reports each entry of a batched add independently.
// Entries in Added stay committed even when later entries failed.
type BatchResult struct {
	Date   time.Time
	Added  []BatchItem
	Failed []BatchFailure
}

// EditResult confirms an in-place amount change.
type EditResult struct {
	OldAmount decimal.Decimal
	NewAmount decimal.Decimal
	Category  string
	Date      time.Time
}

// DeleteResult confirms a deleted expense.
type DeleteResult struct {
	Amount   decimal.Decimal
	Category string
	Date     time.Time
}

// TotalResult answers an aggregate query.
type TotalResult struct {
	Total    decimal.Decimal
	Category string
	Period   string
	Range    DateRange
}

// ListResult carries every record, newest first.
type ListResult struct {
	Records []ExpenseRecord
}
