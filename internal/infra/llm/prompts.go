package llm

import (
	"fmt"
	"strings"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
)

// intentPrompt instructs the model to answer with a single JSON object whose
// "intent" key names one of the supported operations.
func intentPrompt() string {
	return fmt.Sprintf(`You are an expense tracker bot on WhatsApp. Classify the user's message and extract its fields.
Answer with ONE JSON object and nothing else. The "intent" key is required and must be one of: %s.

Shapes:
- add_expense: {"intent":"add_expense","amount":<number>,"category":"<text>","date":"<today|yesterday|YYYY-MM-DD, optional>"}
- add_expenses: {"intent":"add_expenses","items":[{"amount":<number>,"category":"<text>"}],"date":"<optional>"}
- query: {"intent":"query","query_type":"total|category","category":"<optional>","period":"<today|yesterday|this_month|last_month|last_week, optional>","date":"<YYYY-MM-DD, optional>"}
- edit_expense: {"intent":"edit_expense","old_amount":<number>,"old_category":"<text>","new_amount":<number>}
- delete_expense: {"intent":"delete_expense","amount":<number>,"category":"<text>","date":"<optional>"}
- list_all: {"intent":"list_all"}
- help: {"intent":"help"}
- unknown: {"intent":"unknown"}

Rules:
- Amounts are plain numbers without currency symbols.
- Keep the category as the user wrote it (e.g. "coffee", "uber").
- Use null for anything the user did not say. Never invent values.`,
		strings.Join(intentNames(), ", "))
}

// categoryPrompt constrains the model to the fixed taxonomy.
func categoryPrompt() string {
	return fmt.Sprintf(`Map the expense category given by the user to exactly one of: %s.
Answer with the category name only, no punctuation or explanation.`,
		strings.Join(domain.CategoryNames(), ", "))
}

func intentNames() []string {
	out := make([]string, len(domain.IntentKinds))
	for i, k := range domain.IntentKinds {
		out[i] = string(k)
	}
	return out
}
