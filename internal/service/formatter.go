package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/shopspring/decimal"
)

const replyDateLayout = "02 Jan 2006"

// Canned replies.
const (
	MsgGreeting = "Hi! How can I help you track your expenses today?"
	MsgGoodbye  = "Goodbye! Stay on top of your finances."
	MsgApology  = "I couldn't process your request. Please try again."
)

// Formatter renders ledger results as reply text. It never includes error
// strings: callers log the detail and pass only the outcome here.
type Formatter struct {
	symbol string
}

// NewFormatter creates a formatter using the given currency symbol.
func NewFormatter(currencySymbol string) *Formatter {
	if currencySymbol == "" {
		currencySymbol = "₹"
	}
	return &Formatter{symbol: currencySymbol}
}

// Money renders an amount with the currency symbol and no trailing zeros.
func (f *Formatter) Money(d decimal.Decimal) string {
	if d.IsInteger() {
		return f.symbol + d.String()
	}
	return f.symbol + d.StringFixed(2)
}

// Added confirms a single saved expense.
func (f *Formatter) Added(r *domain.AddResult) string {
	return fmt.Sprintf("Saved expense: %s on %s (%s).", f.Money(r.Amount), r.Category, day(r.Date))
}

// Batch lists the saved entries of a batch and any that could not be saved.
func (f *Formatter) Batch(r *domain.BatchResult) string {
	var b strings.Builder
	noun := "expenses"
	if len(r.Added) == 1 {
		noun = "expense"
	}
	fmt.Fprintf(&b, "Saved %d %s for %s:", len(r.Added), noun, day(r.Date))
	for _, it := range r.Added {
		fmt.Fprintf(&b, "\n- %s on %s", f.Money(it.Amount), it.Category)
	}
	if len(r.Failed) > 0 {
		b.WriteString("\nCould not save:")
		for _, it := range r.Failed {
			fmt.Fprintf(&b, "\n- %s", f.failedItem(it))
		}
	}
	return b.String()
}

func (f *Formatter) failedItem(it domain.BatchFailure) string {
	desc := fmt.Sprintf("item %d", it.Index+1)
	switch {
	case it.Amount != nil && it.Category != "":
		desc = fmt.Sprintf("%s on %s", f.Money(*it.Amount), it.Category)
	case it.Amount != nil:
		desc = f.Money(*it.Amount)
	case it.Category != "":
		desc = it.Category
	}
	var ve *domain.ErrValidation
	if errors.As(it.Err, &ve) {
		return desc + " (needs an amount and a category)"
	}
	return desc + " (please try again)"
}

// Edited confirms an amount change.
func (f *Formatter) Edited(r *domain.EditResult) string {
	return fmt.Sprintf("Updated %s expense from %s to %s (%s).",
		r.Category, f.Money(r.OldAmount), f.Money(r.NewAmount), day(r.Date))
}

// Deleted confirms a removed expense.
func (f *Formatter) Deleted(r *domain.DeleteResult) string {
	return fmt.Sprintf("Deleted expense: %s on %s (%s).", f.Money(r.Amount), r.Category, day(r.Date))
}

// Total phrases a total according to which filters were applied.
func (f *Formatter) Total(r *domain.TotalResult) string {
	when := ""
	switch {
	case r.Period != "":
		when = " " + strings.ReplaceAll(r.Period, "_", " ")
	case !r.Range.IsZero():
		when = " on " + day(r.Range.Start)
	}

	if r.Category != "" {
		return fmt.Sprintf("You have spent %s on %s%s.", f.Money(r.Total), r.Category, when)
	}
	if when == "" {
		return fmt.Sprintf("Your total expenses so far: %s", f.Money(r.Total))
	}
	return fmt.Sprintf("You spent %s%s.", f.Money(r.Total), when)
}

// List renders every record, one per line.
func (f *Formatter) List(r *domain.ListResult) string {
	if len(r.Records) == 0 {
		return "You have no expenses recorded yet."
	}
	var b strings.Builder
	b.WriteString("Here are all your expenses:")
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "\n- %s: %s on %s", day(rec.SpentAt), f.Money(rec.Amount), rec.Category)
	}
	return b.String()
}

// Help describes the supported requests and categories.
func (f *Formatter) Help() string {
	return strings.Join([]string{
		"I can track your expenses. Try:",
		fmt.Sprintf("- \"Spent %s500 on food yesterday\"", f.symbol),
		fmt.Sprintf("- \"%s100 coffee and %s200 chocolate\"", f.symbol, f.symbol),
		"- \"How much did I spend on food this month?\"",
		"- \"Total expenses\"",
		"- \"Expenses on 2025-02-04\"",
		fmt.Sprintf("- \"Change %s500 food to %s600\"", f.symbol, f.symbol),
		fmt.Sprintf("- \"Delete %s300 groceries from yesterday\"", f.symbol),
		"- \"List all expenses\"",
		"Categories: " + strings.Join(domain.CategoryNames(), ", "),
	}, "\n")
}

// Guidance is the reply for input that matched no supported operation.
func (f *Formatter) Guidance() string {
	return fmt.Sprintf("Sorry, I didn't understand that. Try something like \"Spent %s500 on food yesterday\", or send \"help\".", f.symbol)
}

// Invalid is the corrective reply for an intent missing required fields.
func (f *Formatter) Invalid(kind domain.IntentKind) string {
	switch kind {
	case domain.IntentAddExpense, domain.IntentAddExpenses:
		return fmt.Sprintf("Please include an amount and a category, e.g. \"Spent %s500 on food yesterday\".", f.symbol)
	case domain.IntentEditExpense:
		return fmt.Sprintf("To edit an expense, tell me the old amount, its category and the new amount, e.g. \"Change %s500 food to %s600\".", f.symbol, f.symbol)
	case domain.IntentDeleteExpense:
		return fmt.Sprintf("To delete an expense, tell me the amount and category, e.g. \"Delete %s300 groceries from yesterday\".", f.symbol)
	case domain.IntentQuery:
		return "Which category? e.g. \"How much did I spend on food this month?\""
	default:
		return f.Guidance()
	}
}

// NotFound is the corrective reply when edit/delete matched nothing.
func (f *Formatter) NotFound(e *domain.ErrNotFound) string {
	if e.Window.IsZero() {
		return fmt.Sprintf("I couldn't find a %s expense for %s.", f.Money(e.Amount), e.Category)
	}
	return fmt.Sprintf("I couldn't find a %s expense for %s on %s.", f.Money(e.Amount), e.Category, day(e.Window.Start))
}

func day(t time.Time) string {
	return t.Format(replyDateLayout)
}
