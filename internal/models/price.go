package models

import (
	"fmt"
	"strings"
)

// FormatPrice renders an amount in minor units for display.
func FormatPrice(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	value := fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)

	switch strings.ToUpper(currency) {
	case "USD":
		return "$" + value
	case "EUR":
		return "€" + value
	case "GBP":
		return "£" + value
	default:
		return value + " " + strings.ToUpper(currency)
	}
}
