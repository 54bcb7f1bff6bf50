// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals restricted to cent precision. Transaction,
// budget and goal amounts are strictly positive; balances carry a sign.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a strictly positive amount with at most two fractional
// digits. Both dot (12.34) and comma (12,34) separators are accepted.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,3")   -> 12.30, nil
//	ParseAmount("12.345") -> error (sub-cent precision)
//	ParseAmount("-1")     -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseSignedAmount parses a balance that may be negative or zero.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil || !hasCentPrecision(d) {
		return decimal.Zero, &ValidationError{Field: "balance", Reason: "must be a number with at most 2 decimal places"}
	}
	return d, nil
}

// ValidateAmount checks that d is positive and has cent precision.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !hasCentPrecision(d) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders d with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}

func hasCentPrecision(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Truncate(0))
}

// MustAmount is ParseAmount for literals; it panics on invalid input.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}
