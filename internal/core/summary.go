package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
// Share is the percentage of the enclosing total, rounded to one decimal.
type CategoryAmount struct {
	Name   string
	Amount Money
	Count  int
	Share  decimal.Decimal
}

// Summary is a compact view over a (possibly filtered) Record Set.
type Summary struct {
	Count      int
	Total      Money
	ByCategory []CategoryAmount
}
