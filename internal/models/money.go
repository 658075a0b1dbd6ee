package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the service books in.
const Currency = "INR"

// RoundCents rounds an amount to currency minor units.
func RoundCents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// FormatAmount renders an amount the way notifications and statements show it.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%s %s", Currency, decimal.NewFromFloat(amount).StringFixed(2))
}
