// Package core provides money parsing and handling utilities.
//
// Amounts travel as integer cents; parsing and conversion go through
// shopspring/decimal so no binary floating point touches user money.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds a single amount so cents always fit comfortably in int64.
var maxAmount = decimal.New(1, 13)

// ParseAmount parses a strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero, negative, signed and
// non-numeric input are rejected with ErrInvalidAmount.
func ParseAmount(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	return MoneyFromDecimal(d)
}

// ParseCeiling parses a budget ceiling, where zero is allowed.
func ParseCeiling(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	return CeilingFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to cents and requires the result to be positive.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	m, err := CeilingFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// CeilingFromDecimal rounds d half-up to cents and requires the result to be >= 0.
func CeilingFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() || d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Convert multiplies the amount by rate and rounds half-up to cents.
// Results that are negative or exceed the amount bound are rejected with
// ErrInvalidAmount instead of wrapping around int64.
func (m Money) Convert(rate decimal.Decimal) (Money, error) {
	v := m.Decimal().Mul(rate).Round(2)
	if v.IsNegative() || v.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: v.Shift(2).IntPart()}, nil
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
