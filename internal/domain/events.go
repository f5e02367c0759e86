package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventType names a ledger mutation.
type LedgerEventType string

const (
	EventExpenseAdded   LedgerEventType = "expense.added"
	EventExpenseEdited  LedgerEventType = "expense.edited"
	EventExpenseDeleted LedgerEventType = "expense.deleted"
)

// LedgerEvent is published after a successful mutation.
type LedgerEvent struct {
	Type       LedgerEventType  `json:"type"`
	ExpenseID  string           `json:"expense_id"`
	Amount     decimal.Decimal  `json:"amount"`
	OldAmount  *decimal.Decimal `json:"old_amount,omitempty"`
	Category   string           `json:"category"`
	SpentAt    time.Time        `json:"spent_at"`
	OccurredAt time.Time        `json:"occurred_at"`
}
