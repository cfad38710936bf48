package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SetTaxDebt writes round(total) into every debts row whose kind starts
// with prefix. It reports whether any row changed.
func SetTaxDebt(rows []Row, prefix string, total decimal.Decimal) bool {
	if prefix == "" {
		return false
	}
	amount := RoundUnits(total).InexactFloat64()
	changed := false
	for _, r := range rows {
		if !strings.HasPrefix(r.Str(ColDebtKind), prefix) {
			continue
		}
		if r.Num(ColDebtAmount) != amount {
			r[ColDebtAmount] = amount
			changed = true
		}
	}
	return changed
}
