package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bilant/internal/core"
)

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if d.Config.MinWage != 4050 || d.Config.GrossIncome != 74528 {
		t.Errorf("Default() config = %+v", d.Config)
	}
	if want := (core.YearMonth{Year: 2026, Month: time.May}); d.Config.TaxDueMonth != want {
		t.Errorf("Default() TaxDueMonth = %v, want %v", d.Config.TaxDueMonth, want)
	}
	if d.Projection.StartYear != 2025 || d.Projection.StartMonth != 8 || d.Projection.MonthCount != 13 {
		t.Errorf("Default() projection = %+v", d.Projection)
	}
	if got := len(d.Installments[2026]); got != 8 {
		t.Errorf("Default() 2026 installments = %d, want 8", got)
	}

	wantRows := map[core.DatasetID]int{
		core.Debts:            3,
		core.Cash:             7,
		core.Receivables:      7,
		core.Portfolio:        3,
		core.MonthlySources:   12,
		core.MonthlyPurchases: 21,
	}
	for id, n := range wantRows {
		ds, err := d.Dataset(id)
		if err != nil {
			t.Fatalf("Dataset(%s) error = %v", id, err)
		}
		if len(ds.Template) != n {
			t.Errorf("Dataset(%s) template rows = %d, want %d", id, len(ds.Template), n)
		}
	}

	cash, _ := d.Dataset(core.Cash)
	if total := cash.Total(cash.Template); total.IntPart() != 52245 {
		t.Errorf("cash template total = %s, want 52245", total)
	}
}

func TestDefault_TaxDebtRow(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	debts, _ := d.Dataset(core.Debts)
	var found bool
	for _, r := range debts.Template {
		if strings.HasPrefix(r.Str(core.ColDebtKind), d.TaxDebtPrefix) {
			found = true
			if got := r.Num(core.ColDebtAmount); got != 23584 {
				t.Errorf("tax debt amount = %v, want 23584", got)
			}
		}
	}
	if !found {
		t.Error("tax debt row not found in debts template")
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing dataset", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		doc := "config:\n  minWage: 1\nprojection:\n  startYear: 2025\n  startMonth: 1\n  monthCount: 1\ndatasets:\n  cash: []\n"
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Load() expected error for missing datasets")
		}
	})

	t.Run("bad year-month", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		doc := "config:\n  taxDueMonth: \"May 2026\"\n"
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Load() expected error for bad year-month")
		}
	})

	t.Run("empty path uses embedded", func(t *testing.T) {
		if _, err := Load(""); err != nil {
			t.Errorf("Load(\"\") error = %v", err)
		}
	})
}
