// Package cashflow projects a monthly ledger from recurring income, a sparse
// installment schedule and a one-time tax payment.
package cashflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilant/internal/core"
)

// DueDateFormat is the day/month/year layout of installment due dates.
const DueDateFormat = "02/01/2006"

var ErrInvalidDueDate = errors.New("invalid due date")

// Installment is one scheduled payment.
type Installment struct {
	DueDate string  `json:"dueDate" yaml:"dueDate"`
	Amount  float64 `json:"amount" yaml:"amount"`
}

// Month parses the due date and returns the month it falls in.
func (i Installment) Month() (core.YearMonth, error) {
	t, err := time.Parse(DueDateFormat, strings.TrimSpace(i.DueDate))
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, i.DueDate)
	}
	return core.YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// Schedule groups installments by year.
type Schedule map[int][]Installment

// Years returns the schedule's years in ascending order.
func (s Schedule) Years() []int {
	years := make([]int, 0, len(s))
	for y := range s {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for y, entries := range s {
		out[y] = append([]Installment(nil), entries...)
	}
	return out
}

// Total sums every installment amount.
func (s Schedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entries := range s {
		for _, e := range entries {
			total = total.Add(decimal.NewFromFloat(e.Amount))
		}
	}
	return total
}

// ByYearMonth indexes the schedule by month. Installments due in the same
// month are summed. Entries with an unparseable due date are skipped and
// reported in the returned error.
func (s Schedule) ByYearMonth() (map[core.YearMonth]decimal.Decimal, error) {
	out := make(map[core.YearMonth]decimal.Decimal)
	var errs []error
	for _, y := range s.Years() {
		for _, e := range s[y] {
			ym, err := e.Month()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out[ym] = out[ym].Add(decimal.NewFromFloat(e.Amount))
		}
	}
	return out, errors.Join(errs...)
}
