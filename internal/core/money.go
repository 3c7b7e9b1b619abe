// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals backed by shopspring/decimal. Parsed user input
// is rounded half-up to cents; values read back from storage are kept exactly
// as stored so that a load/save round trip never changes them.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a non-negative decimal amount.
type Money struct {
	decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{Decimal: decimal.Zero}

// NewMoney wraps an existing decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return Money{Decimal: d}
}

// ParseAmount converts user input to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, thousands separators and anything other than digits are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (rounds up)
//	ParseAmount("-5")     -> error (ErrNegativeAmount)
func ParseAmount(s string) (Money, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: FieldAmount, Value: raw, Err: ErrInvalidAmount}
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return Money{}, &ValidationError{Field: FieldAmount, Value: raw, Err: ErrNegativeAmount}
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") || (intPart == "" && fracPart == "") {
		return Money{}, &ValidationError{Field: FieldAmount, Value: raw, Err: ErrInvalidAmount}
	}
	if hasDot && fracPart == "" {
		s = intPart
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return Money{}, &ValidationError{Field: FieldAmount, Value: raw, Err: ErrInvalidAmount}
		}
	}
	if intPart == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: FieldAmount, Value: raw, Err: ErrInvalidAmount}
	}
	return Money{Decimal: d.Round(2)}, nil
}

func (m Money) Validate() error {
	if m.IsNegative() {
		return &ValidationError{Field: FieldAmount, Value: m.String(), Err: ErrNegativeAmount}
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// Equal compares by value, so 7.5 equals 7.50.
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

// Display formats the amount with exactly two decimals for user interfaces.
func (m Money) Display() string {
	return m.StringFixed(2)
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts only a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s[0] == '"' || s == "null" {
		return &ValidationError{Field: FieldAmount, Value: s, Err: ErrInvalidAmount}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return &ValidationError{Field: FieldAmount, Value: s, Err: ErrInvalidAmount}
	}
	m.Decimal = d
	return nil
}
