// Package core holds the domain types shared by every other package: calendar
// days and months, dataset schemas and rows, tax rules and money formatting.
package core

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the single currency amounts are tracked in.
const Currency = "RON"

// Dec converts a loosely typed cell value to a decimal.
func Dec(v any) decimal.Decimal {
	return decimal.NewFromFloat(ToNum(v))
}

// RoundUnits rounds to whole currency units. Only presentation and export
// boundaries call it; calculations keep full precision.
func RoundUnits(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// FormatAmount renders d rounded to whole units using the currency's
// separators and symbol.
func FormatAmount(d decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	if cur == nil {
		return RoundUnits(d).String()
	}
	minor := RoundUnits(d).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSigned is FormatAmount with an explicit "+" for non-negative values.
func FormatSigned(d decimal.Decimal) string {
	if d.Sign() >= 0 {
		return "+" + FormatAmount(d)
	}
	return FormatAmount(d)
}
