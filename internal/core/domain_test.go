package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-01", true},
		{"2024-02-29", true},
		{" 2025-12-31 ", true},
		{"2023-02-29", false},
		{"2025-13-01", false},
		{"01/02/2025", false},
		{"2025-1-1", false},
		{"", false},
	}
	for i, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error, got %v", i, d)
			}
			if !errors.Is(err, ErrInvalidDate) || !errors.Is(err, ErrValidation) {
				t.Fatalf("case %d expected invalid date validation error, got %v", i, err)
			}
		}
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
	if got := NewDate(2024, 3, 1).String(); got != "2024-03-01" {
		t.Fatalf("unexpected canonical form %q", got)
	}
}

func TestDateFirstCalendarDay(t *testing.T) {
	d, err := ParseDate("0001-01-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !d.Equal(time.Time{}) {
		t.Fatalf("expected the zero instant, got %v", d.Time)
	}
	if d.IsZero() {
		t.Fatalf("a parsed date must not report as unset")
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected 0001-01-01 to be valid, got %v", err)
	}
	if got := d.String(); got != "0001-01-01" {
		t.Fatalf("unexpected canonical form %q", got)
	}

	var decoded Date
	if err := decoded.UnmarshalJSON([]byte(`"0001-01-01"`)); err != nil || decoded.IsZero() {
		t.Fatalf("json decode: %v, zero=%v", err, decoded.IsZero())
	}
	if (Expense{Date: d}).Equal(Expense{}) {
		t.Fatalf("a set date must differ from no date")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		ID:       1,
		Amount:   MustMoney("1.00"),
		Date:     NewDate(2025, 1, 1),
		Category: "food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	imported := good
	imported.LegacyID = "3f0c6a2e-8d4b-4f7e-9a51-2c1d0b7e6f34"
	if err := imported.Validate(); err != nil {
		t.Fatalf("uuid legacy id should be allowed, got %v", err)
	}

	free := good
	free.Amount = Zero
	if err := free.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	long := make([]byte, MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}

	bads := []struct {
		e     Expense
		field string
	}{
		{Expense{ID: 0, Amount: MustMoney("1"), Date: NewDate(2025, 1, 1), Category: "c"}, FieldID},
		{Expense{ID: 1, Amount: MustMoney("-1"), Date: NewDate(2025, 1, 1), Category: "c"}, FieldAmount},
		{Expense{ID: 1, Amount: MustMoney("1"), Date: Date{}, Category: "c"}, FieldDate},
		{Expense{ID: 1, Amount: MustMoney("1"), Date: NewDate(2025, 1, 1), Category: ""}, FieldCategory},
		{Expense{ID: 1, Amount: MustMoney("1"), Date: NewDate(2025, 1, 1), Category: "c", Description: string(long)}, FieldDescription},
		{Expense{ID: 1, Amount: MustMoney("1"), Date: NewDate(2025, 1, 1), Category: "c", LegacyID: "not-a-uuid"}, FieldLegacyID},
	}
	for i, tc := range bads {
		err := tc.e.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("case %d expected field %s, got %s", i, tc.field, verr.Field)
		}
	}
}

func TestExpenseInputBuild(t *testing.T) {
	e, err := ExpenseInput{Amount: "12,50", Date: "2024-03-01", Category: "  Food ", Description: " lunch "}.Build(7)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if e.ID != 7 || !e.Amount.Equal(MustMoney("12.5")) || e.Category != "food" || e.Description != "lunch" {
		t.Fatalf("unexpected record: %+v", e)
	}

	cases := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"negative amount", ExpenseInput{Amount: "-5", Date: "2024-01-01", Category: "food"}, ErrNegativeAmount},
		{"non-numeric amount", ExpenseInput{Amount: "ten", Date: "2024-01-01", Category: "food"}, ErrInvalidAmount},
		{"bad date", ExpenseInput{Amount: "5", Date: "2024-02-30", Category: "food"}, ErrInvalidDate},
		{"blank category", ExpenseInput{Amount: "5", Date: "2024-01-01", Category: "   "}, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.Build(1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation kind, got %v", err)
			}
		})
	}
}

func TestExpensePatchApply(t *testing.T) {
	orig := Expense{ID: 3, Amount: MustMoney("4"), Date: NewDate(2024, 1, 1), Category: "food"}

	amount := "9.99"
	got, err := ExpensePatch{Amount: &amount}.Apply(orig)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.ID != 3 || !got.Amount.Equal(MustMoney("9.99")) || got.Category != "food" || !got.Date.Equal(orig.Date.Time) {
		t.Fatalf("unexpected patched record: %+v", got)
	}

	empty := ""
	if _, err := (ExpensePatch{Category: &empty}).Apply(orig); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if !(ExpensePatch{}).IsEmpty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestCheckStored(t *testing.T) {
	rec := func(id int64) Expense {
		return Expense{ID: id, Amount: MustMoney("1"), Date: NewDate(2024, 1, 1), Category: "food"}
	}

	set, err := CheckStored("test", RecordSet{Expenses: []Expense{rec(1), rec(4)}, LastID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.LastID != 4 {
		t.Fatalf("expected last id raised to 4, got %d", set.LastID)
	}

	_, err = CheckStored("test", RecordSet{Expenses: []Expense{rec(1), rec(1)}})
	var corrupt *CorruptDataError
	if !errors.As(err, &corrupt) || corrupt.Index != 1 || corrupt.Field != FieldID {
		t.Fatalf("expected duplicate id corruption at record 1, got %v", err)
	}

	bad := rec(2)
	bad.Amount = MustMoney("-3")
	_, err = CheckStored("test", RecordSet{Expenses: []Expense{rec(1), bad}})
	if !errors.As(err, &corrupt) || corrupt.Field != FieldAmount || !errors.Is(err, ErrCorruptData) {
		t.Fatalf("expected amount corruption, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("corruption must not be reported as a validation error")
	}
}
