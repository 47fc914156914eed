package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a monetary value to its integer minor-unit string
// (100.00 -> "10000").
func ToMinorUnits(value decimal.Decimal) string {
	return value.Mul(hundred).StringFixed(0)
}

// Round arredonda para duas casas decimais
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
