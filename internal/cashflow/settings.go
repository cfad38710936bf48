package cashflow

import (
	"fmt"
	"strings"
	"time"

	"bilant/internal/core"
)

// MaxMonths bounds how far a projection may look ahead.
const MaxMonths = 240

// Settings select the projection window.
type Settings struct {
	StartYear  int `json:"startYear" yaml:"startYear"`
	StartMonth int `json:"startMonth" yaml:"startMonth"`
	MonthCount int `json:"monthCount" yaml:"monthCount"`
}

// Start returns the first projected month.
func (s Settings) Start() core.YearMonth {
	return core.YearMonth{Year: s.StartYear, Month: time.Month(s.StartMonth)}
}

// Validate reports every out-of-range field at once.
func (s Settings) Validate() error {
	var errs []string
	if s.StartYear < 1900 || s.StartYear > 9999 {
		errs = append(errs, fmt.Sprintf("invalid start year %d", s.StartYear))
	}
	if s.StartMonth < 1 || s.StartMonth > 12 {
		errs = append(errs, fmt.Sprintf("invalid start month %d: must be between 1 and 12", s.StartMonth))
	}
	if s.MonthCount < 0 || s.MonthCount > MaxMonths {
		errs = append(errs, fmt.Sprintf("invalid month count %d: must be between 0 and %d", s.MonthCount, MaxMonths))
	}
	if len(errs) > 0 {
		return fmt.Errorf("projection settings: %s", strings.Join(errs, "; "))
	}
	return nil
}
