// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from form input
// and formatting them in taka for display.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every displayed amount.
const CurrencySymbol = "৳"

// ErrNotANumber is returned when the input is not a decimal number at all.
var ErrNotANumber = errors.New("amount is not a number")

// ParseAmount converts a decimal string to an exact, strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// surrounding whitespace. A leading minus is parsed so that "-5" is reported as
// non-positive rather than as garbage. No rounding is applied.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
//	ParseAmount("abc")    -> 0, ErrNotANumber
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 || (parts[0] == "" && (len(parts) == 1 || parts[1] == "")) {
		return decimal.Zero, ErrNotANumber
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return decimal.Zero, ErrNotANumber
			}
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	if neg {
		d = d.Neg()
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatTaka formats an amount with two decimals, e.g. "৳250.00" or "-৳12.50".
func FormatTaka(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}

// SignedAmount renders a transaction amount the way the list shows it:
// "+৳" for income and "-৳" for expense.
func (t Transaction) SignedAmount() string {
	if t.Type == Income {
		return "+" + FormatTaka(t.Amount)
	}
	return "-" + FormatTaka(t.Amount)
}
