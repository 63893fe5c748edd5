// Package format renders money and rates the way the workbench shows them
// (pt-BR separators).
package format

import (
	"math"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/shopspring/decimal"
)

// Currency returns a Brazilian real string with thousands separators (e.g., "-R$ 1.234,56").
func Currency(amount float64) string {
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return "n/d"
	}
	formatted := formatPositive(math.Abs(amount), constants.DecimalPlaces)
	if amount < 0 && formatted != "0,00" {
		return "-R$ " + formatted
	}
	return "R$ " + formatted
}

// Percent renders a percent value (7.3 means 7.3%) with two decimals, e.g. "7,30%".
func Percent(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return "n/d"
	}
	sign := ""
	formatted := formatPositive(math.Abs(value), 2)
	if value < 0 && formatted != "0,00" {
		sign = "-"
	}
	return sign + formatted + "%"
}

// Ratio renders a fraction (0.073) as a percent string ("7,30%").
func Ratio(value float64) string {
	return Percent(value * constants.PercentageMultiplier)
}

func formatPositive(value float64, places int32) string {
	formatted := decimal.NewFromFloat(value).StringFixed(places)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := ""
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte('.')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if decPart == "" {
		return intPart
	}
	return intPart + "," + decPart
}
