// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents; decimal text is parsed and rendered
// through shopspring/decimal so rounding is exact.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSubscriptionDue is the fixed monthly subscription charge.
var DefaultSubscriptionDue = Money{Cents: 100_00}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds half up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || cents.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	// decimal can hold more than int64; reject anything that would overflow
	if cents.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseMoney parses a positive decimal amount.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// ParseOpening parses a carried-over balance. Unlike ParseMoney it accepts
// zero, and empty input means zero.
func ParseOpening(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return Money{}, &ValidationError{Field: "opening", Err: ErrNegativeOpening}
	}
	if strings.Trim(s, "0.,") == "" {
		return Money{}, nil
	}
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "opening", Err: err}
	}
	return m, nil
}

// MoneyFromUnits builds an amount from whole currency units.
func MoneyFromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// StringFixed renders the amount with two decimals, e.g. "-100.00".
func (m Money) StringFixed() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) String() string {
	return m.StringFixed()
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) Mul(n int) Money {
	return Money{Cents: m.Cents * int64(n)}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}
