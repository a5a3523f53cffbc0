package model

import (
	"strconv"
	"strings"
)

// Category is one of the fixed transaction categories understood by the bot.
type Category string

const (
	CategoryFood      Category = "ALIMENTACAO"
	CategoryTransport Category = "TRANSPORTE"
	CategoryLeisure   Category = "LAZER"
	CategoryHealth    Category = "SAUDE"
	CategoryHousing   Category = "MORADIA"
	CategoryEducation Category = "ESTUDOS"
	CategoryWork      Category = "TRABALHO"
	CategoryIncome    Category = "LUCROS"
)

// Categories is the canonical ordered list. A category's menu number is its
// index plus one.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryLeisure,
	CategoryHealth,
	CategoryHousing,
	CategoryEducation,
	CategoryWork,
	CategoryIncome,
}

// IsIncome reports whether transactions in c count as earnings.
func (c Category) IsIncome() bool {
	return c == CategoryIncome
}

// Valid reports whether c belongs to the canonical list.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the user facing name, with the income marker for LUCROS.
func (c Category) Label() string {
	if c.IsIncome() {
		return string(c) + " (ganhos)"
	}
	return string(c)
}

// ParseCategory normalizes a category token, e.g. "moradia" -> MORADIA.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// CategoryByNumber resolves a 1-based menu number such as "3".
func CategoryByNumber(s string) (Category, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > len(Categories) {
		return "", false
	}
	return Categories[n-1], true
}
