package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Intent: closed union produced by the classifier
// ============================================================

// IntentKind is the discriminator of an Intent.
type IntentKind string

const (
	IntentAddExpense    IntentKind = "add_expense"
	IntentAddExpenses   IntentKind = "add_expenses"
	IntentQuery         IntentKind = "query"
	IntentEditExpense   IntentKind = "edit_expense"
	IntentDeleteExpense IntentKind = "delete_expense"
	IntentListAll       IntentKind = "list_all"
	IntentHelp          IntentKind = "help"
	IntentUnknown       IntentKind = "unknown"
)

// IntentKinds lists every known variant.
var IntentKinds = []IntentKind{
	IntentAddExpense,
	IntentAddExpenses,
	IntentQuery,
	IntentEditExpense,
	IntentDeleteExpense,
	IntentListAll,
	IntentHelp,
	IntentUnknown,
}

// Intent is implemented only by the variant types in this file.
type Intent interface {
	Kind() IntentKind
	isIntent()
}

// QueryType selects what a Query intent aggregates.
type QueryType string

const (
	QueryTotal    QueryType = "total"
	QueryCategory QueryType = "category"
)

// ExpenseItem is one entry of a batched add.
type ExpenseItem struct {
	Amount   *decimal.Decimal
	Category string
}

type AddExpenseIntent struct {
	Amount   *decimal.Decimal
	Category string
	Date     string
}

type AddExpensesIntent struct {
	Items []ExpenseItem
	Date  string
}

type QueryIntent struct {
	QueryType QueryType
	Category  string
	Period    string
	Date      string
}

type EditExpenseIntent struct {
	OldAmount   *decimal.Decimal
	OldCategory string
	NewAmount   *decimal.Decimal
}

type DeleteExpenseIntent struct {
	Amount   *decimal.Decimal
	Category string
	Date     string
}

type ListAllIntent struct{}

type HelpIntent struct{}

type UnknownIntent struct{}

func (AddExpenseIntent) Kind() IntentKind    { return IntentAddExpense }
func (AddExpensesIntent) Kind() IntentKind   { return IntentAddExpenses }
func (QueryIntent) Kind() IntentKind         { return IntentQuery }
func (EditExpenseIntent) Kind() IntentKind   { return IntentEditExpense }
func (DeleteExpenseIntent) Kind() IntentKind { return IntentDeleteExpense }
func (ListAllIntent) Kind() IntentKind       { return IntentListAll }
func (HelpIntent) Kind() IntentKind          { return IntentHelp }
func (UnknownIntent) Kind() IntentKind       { return IntentUnknown }

func (AddExpenseIntent) isIntent()    {}
func (AddExpensesIntent) isIntent()   {}
func (QueryIntent) isIntent()         {}
func (EditExpenseIntent) isIntent()   {}
func (DeleteExpenseIntent) isIntent() {}
func (ListAllIntent) isIntent()       {}
func (HelpIntent) isIntent()          {}
func (UnknownIntent) isIntent()       {}

// ============================================================
// Boundary decoding
// ============================================================

// ErrMissingIntent is returned when the payload has no usable "intent" key.
var ErrMissingIntent = errors.New("classifier payload has no intent")

// rawAmount accepts JSON numbers and strings such as "₹1,200.50".
// Anything unparseable decodes as absent so the handler can ask for it.
type rawAmount struct {
	value *decimal.Decimal
}

func (a *rawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	if d, err := ParseAmount(s); err == nil {
		a.value = &d
	}
	return nil
}

type rawItem struct {
	Amount   rawAmount `json:"amount"`
	Category *string   `json:"category"`
}

type rawIntent struct {
	Intent          *string   `json:"intent"`
	Amount          rawAmount `json:"amount"`
	Category        *string   `json:"category"`
	ExpenseCategory *string   `json:"expense_category"`
	Date            *string   `json:"date"`
	Items           []rawItem `json:"items"`
	QueryType       *string   `json:"query_type"`
	Period          *string   `json:"period"`
	OldAmount       rawAmount `json:"old_amount"`
	OldCategory     *string   `json:"old_category"`
	NewAmount       rawAmount `json:"new_amount"`
}

// DecodeIntent validates a classifier JSON payload and converts it into the
// closed Intent union. Non-object bodies and a missing intent key are errors;
// an intent tag outside the known set yields *ErrUnknownIntent.
func DecodeIntent(data []byte) (Intent, error) {
	var raw rawIntent
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("decode intent payload: %w", err)
	}

	tag := text(raw.Intent)
	if tag == "" {
		return nil, ErrMissingIntent
	}
	kind, ok := parseIntentKind(tag)
	if !ok {
		return nil, &ErrUnknownIntent{Tag: tag}
	}

	category := text(raw.Category)
	if category == "" {
		category = text(raw.ExpenseCategory)
	}

	switch kind {
	case IntentAddExpense:
		return AddExpenseIntent{Amount: raw.Amount.value, Category: category, Date: text(raw.Date)}, nil
	case IntentAddExpenses:
		items := make([]ExpenseItem, 0, len(raw.Items))
		for _, it := range raw.Items {
			items = append(items, ExpenseItem{Amount: it.Amount.value, Category: text(it.Category)})
		}
		return AddExpensesIntent{Items: items, Date: text(raw.Date)}, nil
	case IntentQuery:
		return QueryIntent{
			QueryType: parseQueryType(text(raw.QueryType), category),
			Category:  category,
			Period:    strings.ToLower(text(raw.Period)),
			Date:      text(raw.Date),
		}, nil
	case IntentEditExpense:
		oldCategory := text(raw.OldCategory)
		if oldCategory == "" {
			oldCategory = category
		}
		return EditExpenseIntent{OldAmount: raw.OldAmount.value, OldCategory: oldCategory, NewAmount: raw.NewAmount.value}, nil
	case IntentDeleteExpense:
		return DeleteExpenseIntent{Amount: raw.Amount.value, Category: category, Date: text(raw.Date)}, nil
	case IntentListAll:
		return ListAllIntent{}, nil
	case IntentHelp:
		return HelpIntent{}, nil
	default:
		return UnknownIntent{}, nil
	}
}

func parseIntentKind(tag string) (IntentKind, bool) {
	squashed := squashTag(tag)
	for _, k := range IntentKinds {
		if squashTag(string(k)) == squashed {
			return k, true
		}
	}
	return "", false
}

func squashTag(s string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(s))
}

func parseQueryType(s, category string) QueryType {
	switch QueryType(strings.ToLower(s)) {
	case QueryTotal:
		return QueryTotal
	case QueryCategory:
		return QueryCategory
	}
	if category != "" {
		return QueryCategory
	}
	return QueryTotal
}

// text dereferences an optional string, treating "null"/"none" as absent.
func text(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	switch strings.ToLower(s) {
	case "null", "none", "nil", "n/a":
		return ""
	}
	return s
}

// ============================================================
// Amount parsing
// ============================================================

var amountNoise = regexp.MustCompile(`(?i)(₹|rs\.?|inr|rupees?|\$|,|\s)`)

// ParseAmount parses a user or classifier supplied amount, dropping currency
// markers and thousands separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountNoise.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "empty"}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: fmt.Sprintf("not a number: %q", s)}
	}
	return d, nil
}
