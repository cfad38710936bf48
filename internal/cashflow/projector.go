package cashflow

import (
	"github.com/shopspring/decimal"

	"bilant/internal/core"
)

// Params are the inputs of Project. Nothing else is read, in particular no
// clock, so equal params always give equal projections.
type Params struct {
	Start           core.YearMonth
	Months          int
	StartingBalance decimal.Decimal
	Config          core.TaxConfig
	Schedule        map[core.YearMonth]decimal.Decimal
	OneTimeTax      decimal.Decimal
	OneTimeTaxMonth core.YearMonth
}

// Row is one projected month.
type Row struct {
	Month            core.YearMonth  `json:"month"`
	Label            string          `json:"label"`
	Income           decimal.Decimal `json:"income"`
	ScheduledPayment decimal.Decimal `json:"scheduledPayment"`
	Fee              decimal.Decimal `json:"fee"`
	OneTimeTax       decimal.Decimal `json:"oneTimeTax"`
	RunningBalance   decimal.Decimal `json:"runningBalance"`
}

// Totals are column sums over a projection.
type Totals struct {
	Income            decimal.Decimal `json:"income"`
	ScheduledPayments decimal.Decimal `json:"scheduledPayments"`
	Fees              decimal.Decimal `json:"fees"`
	OneTimeTax        decimal.Decimal `json:"oneTimeTax"`
}

// Projection is the ledger plus its column totals.
type Projection struct {
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
}

// EndingBalance is the running balance after the last month, or the
// starting balance for an empty projection.
func (p Projection) EndingBalance(starting decimal.Decimal) decimal.Decimal {
	if len(p.Rows) == 0 {
		return starting
	}
	return p.Rows[len(p.Rows)-1].RunningBalance
}

// Project walks Months calendar months from Start, carrying the balance.
func Project(p Params) Projection {
	proj := Projection{
		Rows: []Row{},
		Totals: Totals{
			Income:            decimal.Zero,
			ScheduledPayments: decimal.Zero,
			Fees:              decimal.Zero,
			OneTimeTax:        decimal.Zero,
		},
	}
	if p.Months <= 0 {
		return proj
	}

	cfg := p.Config
	savings := decimal.NewFromFloat(cfg.MonthlySavings)
	recurring := decimal.NewFromFloat(cfg.MonthlyRecurringIncome)
	extra := decimal.NewFromFloat(cfg.ExtraIncomeMonthly)
	fee := decimal.NewFromFloat(cfg.OverdraftFeeMonthly)
	oneTimeRounded := core.RoundUnits(p.OneTimeTax)

	balance := p.StartingBalance
	proj.Rows = make([]Row, 0, p.Months)
	for i := 0; i < p.Months; i++ {
		month := p.Start.AddMonths(i)

		income := savings
		if month.AtOrAfter(cfg.RecurringIncomeStart) {
			income = income.Add(recurring)
		}
		if month.AtOrAfter(cfg.ExtraIncomeStart) {
			income = income.Add(extra)
		}

		scheduled, ok := p.Schedule[month]
		if !ok {
			scheduled = decimal.Zero
		}

		oneTime := decimal.Zero
		if !p.OneTimeTaxMonth.IsZero() && month == p.OneTimeTaxMonth {
			oneTime = oneTimeRounded
		}

		balance = balance.Add(income).Sub(scheduled).Sub(fee).Sub(oneTime)

		proj.Rows = append(proj.Rows, Row{
			Month:            month,
			Label:            month.Label(),
			Income:           income,
			ScheduledPayment: scheduled,
			Fee:              fee,
			OneTimeTax:       oneTime,
			RunningBalance:   balance,
		})
		proj.Totals.Income = proj.Totals.Income.Add(income)
		proj.Totals.ScheduledPayments = proj.Totals.ScheduledPayments.Add(scheduled)
		proj.Totals.Fees = proj.Totals.Fees.Add(fee)
		proj.Totals.OneTimeTax = proj.Totals.OneTimeTax.Add(oneTime)
	}
	return proj
}

// FromSettings assembles Params from persisted state: the tax falls due in
// cfg.TaxDueMonth and equals ComputeTax(cfg).Total. An error reports schedule
// entries that were skipped; the projection is still usable.
func FromSettings(s Settings, cfg core.TaxConfig, schedule Schedule, startingBalance decimal.Decimal) (Params, error) {
	byMonth, err := schedule.ByYearMonth()
	return Params{
		Start:           s.Start(),
		Months:          s.MonthCount,
		StartingBalance: startingBalance,
		Config:          cfg,
		Schedule:        byMonth,
		OneTimeTax:      core.ComputeTax(cfg).Total,
		OneTimeTaxMonth: cfg.TaxDueMonth,
	}, err
}
