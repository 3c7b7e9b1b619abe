package aggregate

import "expensetrack/internal/core"

// Predicate selects records for aggregation.
type Predicate func(core.Expense) bool

// ByCategory matches records whose category equals name after normalization.
func ByCategory(name string) Predicate {
	want := core.NormalizeCategory(name)
	return func(e core.Expense) bool {
		return e.Category == want
	}
}

// Between matches records dated within [from, to]. A zero from or to leaves
// that end of the range open.
func Between(from, to core.Date) Predicate {
	return func(e core.Expense) bool {
		if !from.IsZero() && e.Date.Before(from) {
			return false
		}
		if !to.IsZero() && e.Date.After(to) {
			return false
		}
		return true
	}
}

// All matches records that satisfy every predicate. With no predicates it
// matches everything.
func All(preds ...Predicate) Predicate {
	return func(e core.Expense) bool {
		for _, p := range preds {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}

// Filter returns the records matching every predicate, in their original order.
func Filter(records []core.Expense, preds ...Predicate) []core.Expense {
	match := All(preds...)
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}
