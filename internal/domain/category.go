package domain

import "strings"

// Category is one value of the fixed expense taxonomy.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryBeverages     Category = "Beverages"
	CategoryHealthcare    Category = "Healthcare"
	CategoryUtilities     Category = "Utilities"
	CategoryOthers        Category = "Others"
)

// Categories lists the taxonomy in prompt order.
var Categories = []Category{
	CategoryFood,
	CategoryGroceries,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBeverages,
	CategoryHealthcare,
	CategoryUtilities,
	CategoryOthers,
}

// ParseCategory maps a classifier answer onto the taxonomy. It tolerates
// surrounding whitespace, quotes, a trailing period and any letter case.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`.")
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// CategoryNames returns the taxonomy as plain strings.
func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}
