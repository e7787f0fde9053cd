package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// FormatMoney renders an amount held in minor units with two decimals and the currency symbol
func FormatMoney(symbol string, minor int64) string {
	return symbol + decimal.New(minor, -2).StringFixed(2)
}

// MinorUnits converts a decimal amount to minor units, rounding half away from zero.
// Amounts that do not fit in an int64 return ErrAmountTooLarge.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	return RoundMinor(amount.Shift(2))
}

// RoundMinor rounds an amount already expressed in minor units to a whole int64
func RoundMinor(minor decimal.Decimal) (int64, error) {
	minor = minor.Round(0)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrAmountTooLarge
	}
	return minor.IntPart(), nil
}
