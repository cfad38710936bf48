package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bilant/internal/cashflow"
	"bilant/internal/core"
	"bilant/internal/log"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config returns the persisted tax configuration, or the seeded one.
func (l *Ledger) Config(ctx context.Context) core.TaxConfig {
	cfg := l.defaults.Config
	l.readSlot(ctx, core.KeyConfig, &cfg)
	return cfg
}

// SetConfig persists cfg and, when the primary date is today, rewrites the
// tax row of today's debts. It returns the recomputed taxes.
func (l *Ledger) SetConfig(ctx context.Context, cfg core.TaxConfig) (core.TaxBreakdown, error) {
	if err := validateConfig(cfg); err != nil {
		return core.TaxBreakdown{}, err
	}
	l.mu.Lock()
	l.writeSlot(ctx, core.KeyConfig, cfg)
	l.mu.Unlock()

	l.syncTaxDebt(ctx)
	return core.ComputeTax(cfg), nil
}

func validateConfig(cfg core.TaxConfig) error {
	var errs []string
	check := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", name))
		}
	}
	check("minWage", cfg.MinWage)
	check("grossIncome", cfg.GrossIncome)
	check("deductibleExpenses", cfg.DeductibleExpenses)
	check("monthlyRecurringIncome", cfg.MonthlyRecurringIncome)
	check("extraIncomeMonthly", cfg.ExtraIncomeMonthly)
	check("overdraftFeeMonthly", cfg.OverdraftFeeMonthly)
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Tax computes the taxes of the current configuration.
func (l *Ledger) Tax(ctx context.Context) core.TaxBreakdown {
	return core.ComputeTax(l.Config(ctx))
}

func (l *Ledger) Installments(ctx context.Context) cashflow.Schedule {
	s := l.defaults.Installments.Clone()
	var stored cashflow.Schedule
	if l.readSlot(ctx, core.KeyInstallments, &stored) {
		s = stored
	}
	return s
}

// SetInstallments replaces the schedule. Every due date must parse.
func (l *Ledger) SetInstallments(ctx context.Context, s cashflow.Schedule) error {
	if _, err := s.ByYearMonth(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if s == nil {
		s = cashflow.Schedule{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeSlot(ctx, core.KeyInstallments, s)
	return nil
}

func (l *Ledger) ProjectionSettings(ctx context.Context) cashflow.Settings {
	s := l.defaults.Projection
	l.readSlot(ctx, core.KeyProjectionSettings, &s)
	return s
}

func (l *Ledger) SetProjectionSettings(ctx context.Context, s cashflow.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeSlot(ctx, core.KeyProjectionSettings, s)
	return nil
}

// ProjectionReport is a projection with the inputs it was built from.
type ProjectionReport struct {
	Settings        cashflow.Settings   `json:"settings"`
	StartingBalance decimal.Decimal     `json:"startingBalance"`
	EndingBalance   decimal.Decimal     `json:"endingBalance"`
	Tax             core.TaxBreakdown   `json:"tax"`
	Projection      cashflow.Projection `json:"projection"`
	// Warnings lists installments skipped for an unparseable due date.
	Warnings []string `json:"warnings,omitempty"`
}

// Projection runs the cashflow projection starting from the cash total at
// the primary date.
func (l *Ledger) Projection(ctx context.Context) ProjectionReport {
	settings := l.ProjectionSettings(ctx)
	cfg := l.Config(ctx)
	starting := l.stores[core.Cash].Total(l.cursor.Get())

	params, err := cashflow.FromSettings(settings, cfg, l.Installments(ctx), starting)
	report := ProjectionReport{
		Settings:        settings,
		StartingBalance: starting,
		Tax:             core.ComputeTax(cfg),
	}
	if err != nil {
		l.logger.WarnContext(ctx, "Skipping invalid installments", log.FieldError, err)
		report.Warnings = strings.Split(err.Error(), "\n")
	}
	report.Projection = cashflow.Project(params)
	report.EndingBalance = report.Projection.EndingBalance(starting)
	return report
}

const maxTabLength = 64

// SelectedTab returns the last view the user opened, if any.
func (l *Ledger) SelectedTab(ctx context.Context) string {
	var tab string
	l.readSlot(ctx, core.KeySelectedTab, &tab)
	return tab
}

func (l *Ledger) SetSelectedTab(ctx context.Context, tab string) error {
	tab = strings.TrimSpace(tab)
	if tab == "" || len(tab) > maxTabLength {
		return fmt.Errorf("%w: tab must be 1-%d characters", ErrInvalidConfig, maxTabLength)
	}
	l.writeSlot(ctx, core.KeySelectedTab, tab)
	return nil
}
