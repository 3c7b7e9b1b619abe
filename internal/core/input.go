package core

import "strings"

// ExpenseInput is raw user input for a new record.
type ExpenseInput struct {
	Amount      string
	Date        string
	Category    string
	Description string
}

// ExpensePatch carries the fields to replace on an existing record. Nil
// fields are left untouched; the id can never be changed.
type ExpensePatch struct {
	Amount      *string
	Date        *string
	Category    *string
	Description *string
}

// Build validates the input and returns a record carrying the given id.
func (in ExpenseInput) Build(id int64) (Expense, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Expense{}, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{
		ID:          id,
		Amount:      amount,
		Date:        date,
		Category:    NormalizeCategory(in.Category),
		Description: strings.TrimSpace(in.Description),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Date == nil && p.Category == nil && p.Description == nil
}

// Apply returns a copy of e with the supplied fields replaced and validated
// with the same rules as Build.
func (p ExpensePatch) Apply(e Expense) (Expense, error) {
	if p.Amount != nil {
		amount, err := ParseAmount(*p.Amount)
		if err != nil {
			return Expense{}, err
		}
		e.Amount = amount
	}
	if p.Date != nil {
		date, err := ParseDate(*p.Date)
		if err != nil {
			return Expense{}, err
		}
		e.Date = date
	}
	if p.Category != nil {
		e.Category = NormalizeCategory(*p.Category)
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}
