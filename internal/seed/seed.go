// Package seed loads the starting dataset templates, tax configuration,
// installment schedule and projection window.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bilant/internal/cashflow"
	"bilant/internal/core"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults is the parsed seed document.
type Defaults struct {
	Config        core.TaxConfig
	Projection    cashflow.Settings
	Installments  cashflow.Schedule
	TaxDebtPrefix string
	Datasets      map[core.DatasetID]core.Dataset
}

type configDoc struct {
	MinWage                float64 `yaml:"minWage"`
	GrossIncome            float64 `yaml:"grossIncome"`
	DeductibleExpenses     float64 `yaml:"deductibleExpenses"`
	MonthlyRecurringIncome float64 `yaml:"monthlyRecurringIncome"`
	RecurringIncomeStart   string  `yaml:"recurringIncomeStart"`
	MonthlySavings         float64 `yaml:"monthlySavings"`
	ExtraIncomeMonthly     float64 `yaml:"extraIncomeMonthly"`
	ExtraIncomeStart       string  `yaml:"extraIncomeStart"`
	OverdraftFeeMonthly    float64 `yaml:"overdraftFeeMonthly"`
	TaxDueMonth            string  `yaml:"taxDueMonth"`
}

type document struct {
	Config        configDoc             `yaml:"config"`
	Projection    cashflow.Settings     `yaml:"projection"`
	Installments  cashflow.Schedule     `yaml:"installments"`
	TaxDebtPrefix string                `yaml:"taxDebtPrefix"`
	Datasets      map[string][]core.Row `yaml:"datasets"`
}

// Default returns the embedded defaults.
func Default() (Defaults, error) {
	return Parse(defaultsYAML)
}

// Load reads defaults from path, or the embedded document when path is empty.
func Load(path string) (Defaults, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Every dataset must be present.
func Parse(data []byte) (Defaults, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Defaults{}, fmt.Errorf("parse seed: %w", err)
	}

	cfg, err := doc.Config.taxConfig()
	if err != nil {
		return Defaults{}, fmt.Errorf("parse seed config: %w", err)
	}
	if err := doc.Projection.Validate(); err != nil {
		return Defaults{}, fmt.Errorf("parse seed: %w", err)
	}
	if _, err := doc.Installments.ByYearMonth(); err != nil {
		return Defaults{}, fmt.Errorf("parse seed installments: %w", err)
	}

	schemas := core.Schemas()
	datasets := make(map[core.DatasetID]core.Dataset, len(schemas))
	for _, id := range core.DatasetIDs {
		rows, ok := doc.Datasets[string(id)]
		if !ok {
			return Defaults{}, fmt.Errorf("parse seed: dataset %q missing", id)
		}
		datasets[id] = schemas[id].WithTemplate(rows)
	}

	debts := datasets[core.Debts]
	core.SetTaxDebt(debts.Template, doc.TaxDebtPrefix, core.ComputeTax(cfg).Total)

	return Defaults{
		Config:        cfg,
		Projection:    doc.Projection,
		Installments:  doc.Installments,
		TaxDebtPrefix: doc.TaxDebtPrefix,
		Datasets:      datasets,
	}, nil
}

func (c configDoc) taxConfig() (core.TaxConfig, error) {
	recurringStart, err := core.ParseYearMonth(c.RecurringIncomeStart)
	if err != nil {
		return core.TaxConfig{}, err
	}
	extraStart, err := core.ParseYearMonth(c.ExtraIncomeStart)
	if err != nil {
		return core.TaxConfig{}, err
	}
	due, err := core.ParseYearMonth(c.TaxDueMonth)
	if err != nil {
		return core.TaxConfig{}, err
	}
	return core.TaxConfig{
		MinWage:                c.MinWage,
		GrossIncome:            c.GrossIncome,
		DeductibleExpenses:     c.DeductibleExpenses,
		MonthlyRecurringIncome: c.MonthlyRecurringIncome,
		RecurringIncomeStart:   recurringStart,
		MonthlySavings:         c.MonthlySavings,
		ExtraIncomeMonthly:     c.ExtraIncomeMonthly,
		ExtraIncomeStart:       extraStart,
		OverdraftFeeMonthly:    c.OverdraftFeeMonthly,
		TaxDueMonth:            due,
	}, nil
}

// Dataset returns the dataset with its seeded template.
func (d Defaults) Dataset(id core.DatasetID) (core.Dataset, error) {
	ds, ok := d.Datasets[id]
	if !ok {
		return core.Dataset{}, fmt.Errorf("%w: %q", core.ErrUnknownDataset, id)
	}
	return ds, nil
}
