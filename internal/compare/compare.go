// Package compare computes totals of a dataset at two days and their delta.
//
// Comparing a day with itself has no meaning, so such a comparison carries
// the NotApplicable delta instead of zero, and a Selection never lets the
// compare date equal the primary date.
package compare

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"bilant/internal/core"
)

const notApplicableText = "N/A"

// Delta is primary minus compare, or NotApplicable.
type Delta struct {
	value      decimal.Decimal
	applicable bool
}

// NotApplicable is the delta of a same-day comparison.
var NotApplicable = Delta{}

// DeltaOf wraps a computed difference.
func DeltaOf(v decimal.Decimal) Delta {
	return Delta{value: v, applicable: true}
}

// Value returns the difference and whether it exists.
func (d Delta) Value() (decimal.Decimal, bool) {
	return d.value, d.applicable
}

func (d Delta) Applicable() bool { return d.applicable }

func (d Delta) String() string {
	if !d.applicable {
		return notApplicableText
	}
	return d.value.String()
}

// MarshalJSON encodes NotApplicable as "N/A" and a value as a decimal string.
func (d Delta) MarshalJSON() ([]byte, error) {
	if !d.applicable {
		return json.Marshal(notApplicableText)
	}
	return d.value.MarshalJSON()
}

func (d *Delta) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil && s == notApplicableText {
		*d = NotApplicable
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	*d = DeltaOf(v)
	return nil
}

// Result of comparing two days.
type Result struct {
	PrimaryDay   core.Day        `json:"primaryDay"`
	CompareDay   core.Day        `json:"compareDay"`
	PrimaryTotal decimal.Decimal `json:"primaryTotal"`
	CompareTotal decimal.Decimal `json:"compareTotal"`
	Delta        Delta           `json:"delta"`
}

// RowsReader reads the rows of one dataset at a day.
type RowsReader interface {
	GetRows(day core.Day) []core.Row
}

// Compare aggregates store at both days.
func Compare(store RowsReader, agg core.Aggregate, primary, compareDay core.Day) Result {
	return CompareFunc(func(d core.Day) decimal.Decimal {
		return agg(store.GetRows(d))
	}, primary, compareDay)
}

// CompareFunc compares a derived total such as net balance.
func CompareFunc(total func(core.Day) decimal.Decimal, primary, compareDay core.Day) Result {
	r := Result{
		PrimaryDay:   primary,
		CompareDay:   compareDay,
		PrimaryTotal: total(primary),
		CompareTotal: total(compareDay),
		Delta:        NotApplicable,
	}
	if primary != compareDay {
		r.Delta = DeltaOf(r.PrimaryTotal.Sub(r.CompareTotal))
	}
	return r
}
