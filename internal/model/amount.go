package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on money values. Exponents outside this range make decimal
// arithmetic and formatting cost grow with the exponent itself.
const (
	MaxAmountExponent = 18
	MaxAmountDigits   = 28
)

// CheckAmount rejects decimals too large or too finely scaled to be money.
func CheckAmount(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < -MaxAmountExponent || exp > MaxAmountExponent {
		return fmt.Errorf("amount exponent %d is outside ±%d", exp, MaxAmountExponent)
	}
	if d.NumDigits() > MaxAmountDigits {
		return fmt.Errorf("amount has more than %d digits", MaxAmountDigits)
	}
	return nil
}

// FormatAmount renders d with at least two decimal places and never rounds:
// sub-cent digits are kept.
func FormatAmount(d decimal.Decimal) string {
	s := d.String()
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 2 {
		return s
	}
	return d.StringFixed(2)
}
