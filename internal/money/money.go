// Package money provides fixed-scale decimal arithmetic for ledger amounts.
//
// Every amount in the system is a shopspring decimal rounded to two places,
// the minor unit of the currencies the ledger handles. Rounding is half-up
// (ties round away from zero; amounts here are non-negative). Addition is
// commutative, so aggregates do not depend on iteration order.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every stored amount carries.
const Scale = 2

// Epsilon is the threshold below which a balance is treated as zero.
var Epsilon = decimal.New(1, -Scale) // 0.01

// Hundred is used for percentage math.
var Hundred = decimal.NewFromInt(100)

// Round rounds d to the fixed scale, half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse parses a decimal string such as "33.34".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for test fixtures and constants; it panics on bad input.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Sum adds amounts without intermediate rounding.
func Sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

// IsZeroish reports whether d is within Epsilon of zero.
func IsZeroish(d decimal.Decimal) bool {
	return d.Abs().Cmp(Epsilon) < 0
}
