package compare

import (
	"github.com/shopspring/decimal"

	"bilant/internal/core"
)

// DefaultSeriesDays is the length of the trailing net balance series.
const DefaultSeriesDays = 30

// Totaler totals a dataset at a day without recording backfills.
type Totaler interface {
	Total(day core.Day) decimal.Decimal
}

// Balance derives the net position from the four balance datasets.
type Balance struct {
	Cash        Totaler
	Receivables Totaler
	Portfolio   Totaler
	Debts       Totaler
}

// Sheet is the balance at one day.
type Sheet struct {
	Day         core.Day        `json:"day"`
	Cash        decimal.Decimal `json:"cash"`
	Receivables decimal.Decimal `json:"receivables"`
	Portfolio   decimal.Decimal `json:"portfolio"`
	Assets      decimal.Decimal `json:"assets"`
	Debts       decimal.Decimal `json:"debts"`
	Net         decimal.Decimal `json:"net"`
}

// At computes cash + receivables + portfolio value - debts at day.
func (b Balance) At(day core.Day) Sheet {
	s := Sheet{
		Day:         day,
		Cash:        b.Cash.Total(day),
		Receivables: b.Receivables.Total(day),
		Portfolio:   b.Portfolio.Total(day),
		Debts:       b.Debts.Total(day),
	}
	s.Assets = s.Cash.Add(s.Receivables).Add(s.Portfolio)
	s.Net = s.Assets.Sub(s.Debts)
	return s
}

// Net is At(day).Net.
func (b Balance) Net(day core.Day) decimal.Decimal {
	return b.At(day).Net
}

// Point is one entry of a series.
type Point struct {
	Day   core.Day        `json:"day"`
	Value decimal.Decimal `json:"value"`
}

// Series returns the net balance for the days trailing up to end, oldest
// first. days <= 0 means DefaultSeriesDays.
func (b Balance) Series(end core.Day, days int) []Point {
	if days <= 0 {
		days = DefaultSeriesDays
	}
	out := make([]Point, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := end.AddDays(-i)
		out = append(out, Point{Day: d, Value: b.Net(d)})
	}
	return out
}
