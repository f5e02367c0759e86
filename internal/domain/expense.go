package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Expense ledger
// ============================================================

// ExpenseRecord is one persisted expense. The ID is a storage surrogate:
// users address records by (amount, category, time window), never by ID.
type ExpenseRecord struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	SpentAt   time.Time       `json:"spent_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// AmountScale is the number of decimal places an amount may carry.
const AmountScale = 2

// MaxAmount is the largest amount whose minor units fit in an int64.
var MaxAmount = decimal.New(math.MaxInt64, -AmountScale)

// ValidateAmount checks that d is positive, has at most two decimal places
// and fits in int64 minor units. field names the offending input.
func ValidateAmount(field string, d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return &ErrValidation{Field: field, Message: "must be positive"}
	case !d.Equal(d.Truncate(AmountScale)):
		return &ErrValidation{Field: field, Message: "at most two decimal places"}
	case d.GreaterThan(MaxAmount):
		return &ErrValidation{Field: field, Message: "too large"}
	}
	return nil
}

// Validate checks the record invariants: a representable positive amount and
// a non-empty category.
func (r ExpenseRecord) Validate() error {
	if err := ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	return nil
}

// DateRange is a half-open [Start, End) interval. The zero value means
// "no date filter".
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range applies no filter.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls inside the range. A zero range contains everything.
func (r DateRange) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// ============================================================
// Category matching
// ============================================================

// MatchPolicy controls how a requested category is compared with stored ones.
type MatchPolicy string

const (
	// MatchExact is case-sensitive equality.
	MatchExact MatchPolicy = "exact"
	// MatchFold is case-insensitive equality.
	MatchFold MatchPolicy = "fold"
	// MatchContains is a case-insensitive substring match.
	MatchContains MatchPolicy = "contains"
)

// ParseMatchPolicy returns the policy named by s, or false when unknown.
func ParseMatchPolicy(s string) (MatchPolicy, bool) {
	switch p := MatchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MatchExact, MatchFold, MatchContains:
		return p, true
	}
	return "", false
}

// Matches compares a stored category against the wanted one.
func (p MatchPolicy) Matches(stored, wanted string) bool {
	switch p {
	case MatchFold:
		return strings.EqualFold(stored, wanted)
	case MatchContains:
		return strings.Contains(strings.ToLower(stored), strings.ToLower(wanted))
	default:
		return stored == wanted
	}
}

// ExpenseFilter selects records for find/delete/aggregate operations.
// Empty fields do not filter.
type ExpenseFilter struct {
	Amount   *decimal.Decimal
	Category string
	Match    MatchPolicy
	Range    DateRange
}

// Matches applies the filter to a record in memory.
func (f ExpenseFilter) Matches(r ExpenseRecord) bool {
	if f.Amount != nil && !r.Amount.Equal(*f.Amount) {
		return false
	}
	if f.Category != "" && !f.Match.Matches(r.Category, f.Category) {
		return false
	}
	return f.Range.Contains(r.SpentAt)
}

// SortOrder orders find results by SpentAt.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortNewestFirst
	SortOldestFirst
)
