// Package format renders stored money amounts for plain-text consumers such
// as PDF and email collaborators.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

var symbols = map[string]string{
	"ZAR": "R",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatPlain renders amount with two decimals and the currency symbol,
// e.g. R1500.00. Unknown currencies are prefixed with their code.
func FormatPlain(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	prefix, ok := symbols[code]
	if !ok {
		prefix = code + " "
	}

	value := amount.Round(2)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	return sign + prefix + value.StringFixed(2)
}
