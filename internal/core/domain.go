package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the canonical on-disk and user-facing date form.
const DateLayout = "2006-01-02"

const (
	MaxCategoryLength    = 50
	MaxDescriptionLength = 200
)

type (
	// Date is a calendar day at midnight UTC. The zero Date means "no
	// date"; every day from 0001-01-01 on, including time.Time's own zero
	// instant, is a valid Date once set.
	Date struct {
		time.Time
		set bool
	}

	// Expense is one recorded spending entry. Build it with ExpenseInput.Build
	// or ExpensePatch.Apply so its invariants hold.
	//
	// LegacyID keeps the UUID a record carried in the older bare-array file
	// layout, where ids were strings. New records never have one.
	Expense struct {
		ID          int64
		Amount      Money
		Date        Date
		Category    string
		Description string
		LegacyID    string
	}

	// RecordSet is the complete ordered collection persisted as a unit.
	// LastID is the highest id ever assigned, including deleted ones.
	RecordSet struct {
		Expenses []Expense
		LastID   int64
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), set: true}
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: FieldDate, Value: s, Err: ErrInvalidDate}
	}
	return Date{Time: t, set: true}, nil
}

// IsZero reports whether no date was set. It shadows time.Time.IsZero so
// that 0001-01-01 stays a real date.
func (d Date) IsZero() bool {
	return !d.set
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: FieldDate, Err: ErrInvalidDate}
	}
	return nil
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// MarshalText renders the canonical YYYY-MM-DD form.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses the canonical YYYY-MM-DD form.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeCategory trims and lower-cases a category label so that "Food"
// and " food" name the same category.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateCategory checks an already normalized category label.
func ValidateCategory(c string) error {
	if c == "" {
		return &ValidationError{Field: FieldCategory, Value: c, Err: ErrEmptyCategory}
	}
	if len(c) > MaxCategoryLength {
		return &ValidationError{Field: FieldCategory, Value: c, Err: ErrCategoryTooLong}
	}
	return nil
}

func (e Expense) Validate() error {
	if e.ID <= 0 {
		return &ValidationError{Field: FieldID, Err: ErrInvalidID}
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := ValidateCategory(e.Category); err != nil {
		return err
	}
	if len(e.Description) > MaxDescriptionLength {
		return &ValidationError{Field: FieldDescription, Err: ErrDescriptionTooLong}
	}
	if e.LegacyID != "" {
		if _, err := uuid.Parse(e.LegacyID); err != nil {
			return &ValidationError{Field: FieldLegacyID, Value: e.LegacyID, Err: ErrInvalidLegacyID}
		}
	}
	return nil
}

// Equal compares records field for field, amounts by decimal value.
func (e Expense) Equal(other Expense) bool {
	return e.ID == other.ID &&
		e.Amount.Equal(other.Amount) &&
		e.Date.IsZero() == other.Date.IsZero() &&
		e.Date.Equal(other.Date.Time) &&
		e.Category == other.Category &&
		e.Description == other.Description &&
		e.LegacyID == other.LegacyID
}

// Index returns the position of the record with the given id, or -1.
func (s RecordSet) Index(id int64) int {
	for i, e := range s.Expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy whose Expenses slice can be modified independently.
func (s RecordSet) Clone() RecordSet {
	out := RecordSet{LastID: s.LastID, Expenses: make([]Expense, len(s.Expenses))}
	copy(out.Expenses, s.Expenses)
	return out
}

// NextID returns the id the next added record receives.
func (s RecordSet) NextID() int64 {
	return s.LastID + 1
}

// MarshalJSON overrides the promoted time.Time encoding with YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &ValidationError{Field: FieldDate, Value: s, Err: ErrInvalidDate}
	}
	return d.UnmarshalText([]byte(s[1 : len(s)-1]))
}
