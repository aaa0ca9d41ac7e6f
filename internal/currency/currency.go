// Package currency renders amounts for display.
package currency

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

// symbols are the display symbols the app ships with. Codes missing here
// fall back to the go-money table, then to the raw code.
var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"NGN": "₦",
	"GHS": "₵",
	"ZAR": "R",
	"CAD": "CA$",
	"AUD": "A$",
	"XAF": "FCFA",
	"KES": "KSh",
}

// suffixed lists the codes written as amount followed by symbol.
var suffixed = map[string]bool{
	"XAF": true,
	"KES": true,
}

// Format renders amount with exactly two decimals, rounding half away from
// zero, and the symbol for code.
//
//	Format(1234.5, "XAF") -> "1234.50 FCFA"
//	Format(1234.5, "USD") -> "$1234.50"
//	Format(0, "ZZZ")      -> "0.00ZZZ"
func Format(amount float64, code string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	value := decimal.NewFromFloat(amount).StringFixed(2)
	symbol, known := lookup(code)
	switch {
	case suffixed[code]:
		return value + " " + symbol
	case !known:
		return value + code
	}
	return symbol + value
}

// FormatMoney is Format for integer-cent amounts.
func FormatMoney(m core.Money, code string) string {
	return Format(m.Float(), code)
}

// Symbol returns the display symbol for code, or code itself when unknown.
func Symbol(code string) string {
	s, _ := lookup(code)
	return s
}

func lookup(code string) (string, bool) {
	if s, ok := symbols[code]; ok {
		return s, true
	}
	if c := money.GetCurrency(code); c != nil && c.Grapheme != "" {
		return c.Grapheme, true
	}
	return code, false
}
