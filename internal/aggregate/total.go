// Package aggregate computes totals and per-category breakdowns over
// expense records. All arithmetic is exact decimal; nothing here touches
// storage.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"expensetrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Total sums the amounts of records matching every predicate. An empty
// selection totals zero.
func Total(records []core.Expense, preds ...Predicate) core.Money {
	match := All(preds...)
	sum := core.Zero
	for _, e := range records {
		if match(e) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// Breakdown groups matching records by category, largest amount first. Ties
// are ordered by name. Share is each category's percentage of the selection
// total, rounded to one decimal place, and zero when the total is zero.
func Breakdown(records []core.Expense, preds ...Predicate) []core.CategoryAmount {
	match := All(preds...)
	byName := make(map[string]*core.CategoryAmount)
	total := core.Zero
	for _, e := range records {
		if !match(e) {
			continue
		}
		ca, ok := byName[e.Category]
		if !ok {
			ca = &core.CategoryAmount{Name: e.Category, Amount: core.Zero}
			byName[e.Category] = ca
		}
		ca.Amount = ca.Amount.Add(e.Amount)
		ca.Count++
		total = total.Add(e.Amount)
	}

	out := make([]core.CategoryAmount, 0, len(byName))
	for _, ca := range byName {
		if total.IsZero() {
			ca.Share = decimal.Zero
		} else {
			ca.Share = ca.Amount.Mul(hundred).DivRound(total.Decimal, 4).Round(1)
		}
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount.Decimal); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize bundles count, total and breakdown for the matching records.
func Summarize(records []core.Expense, preds ...Predicate) core.Summary {
	selected := Filter(records, preds...)
	return core.Summary{
		Count:      len(selected),
		Total:      Total(selected),
		ByCategory: Breakdown(selected),
	}
}
