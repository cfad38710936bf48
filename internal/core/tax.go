package core

import (
	"github.com/shopspring/decimal"
)

// TaxConfig holds the yearly tax inputs and the recurring cashflow figures
// the projection uses.
type TaxConfig struct {
	MinWage                float64   `json:"minWage" yaml:"minWage"`
	GrossIncome            float64   `json:"grossIncome" yaml:"grossIncome"`
	DeductibleExpenses     float64   `json:"deductibleExpenses" yaml:"deductibleExpenses"`
	MonthlyRecurringIncome float64   `json:"monthlyRecurringIncome" yaml:"monthlyRecurringIncome"`
	RecurringIncomeStart   YearMonth `json:"recurringIncomeStart" yaml:"recurringIncomeStart"`
	MonthlySavings         float64   `json:"monthlySavings" yaml:"monthlySavings"`
	ExtraIncomeMonthly     float64   `json:"extraIncomeMonthly" yaml:"extraIncomeMonthly"`
	ExtraIncomeStart       YearMonth `json:"extraIncomeStart" yaml:"extraIncomeStart"`
	OverdraftFeeMonthly    float64   `json:"overdraftFeeMonthly" yaml:"overdraftFeeMonthly"`
	TaxDueMonth            YearMonth `json:"taxDueMonth" yaml:"taxDueMonth"`
}

// TaxBreakdown is the result of ComputeTax. Values are unrounded.
type TaxBreakdown struct {
	NetIncome   decimal.Decimal `json:"netIncome"`
	Threshold6  decimal.Decimal `json:"threshold6"`
	Threshold12 decimal.Decimal `json:"threshold12"`
	CAS         decimal.Decimal `json:"cas"`
	CASS        decimal.Decimal `json:"cass"`
	IncomeTax   decimal.Decimal `json:"incomeTax"`
	Total       decimal.Decimal `json:"total"`
}

var (
	casRate       = decimal.RequireFromString("0.25")
	cassRate      = decimal.RequireFromString("0.10")
	incomeTaxRate = decimal.RequireFromString("0.10")
	six           = decimal.NewFromInt(6)
	twelve        = decimal.NewFromInt(12)
)

// ComputeTax derives the yearly social contributions and income tax.
//
// Pension contribution (CAS) is 25% of twelve minimum wages, due only when
// net income reaches that threshold. Health contribution (CASS) is 10% of net
// income with a floor of 10% of six minimum wages. Income tax is 10% of what
// remains after both, clamped at zero.
func ComputeTax(cfg TaxConfig) TaxBreakdown {
	minWage := decimal.NewFromFloat(cfg.MinWage)
	net := decimal.NewFromFloat(cfg.GrossIncome).Sub(decimal.NewFromFloat(cfg.DeductibleExpenses))
	t6 := six.Mul(minWage)
	t12 := twelve.Mul(minWage)

	cas := decimal.Zero
	if net.GreaterThanOrEqual(t12) {
		cas = casRate.Mul(t12)
	}
	cass := decimal.Max(cassRate.Mul(net), cassRate.Mul(t6))
	taxable := decimal.Max(decimal.Zero, net.Sub(cas).Sub(cass))
	incomeTax := incomeTaxRate.Mul(taxable)

	return TaxBreakdown{
		NetIncome:   net,
		Threshold6:  t6,
		Threshold12: t12,
		CAS:         cas,
		CASS:        cass,
		IncomeTax:   incomeTax,
		Total:       cas.Add(cass).Add(incomeTax),
	}
}
