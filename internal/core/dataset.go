package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DatasetID is also the persisted slot name of the dataset's snapshot map.
type DatasetID string

const (
	Debts            DatasetID = "debts"
	Cash             DatasetID = "cash"
	Receivables      DatasetID = "recv"
	Portfolio        DatasetID = "port"
	MonthlySources   DatasetID = "monthlySources"
	MonthlyPurchases DatasetID = "monthlyPurchases"
)

// DatasetIDs lists every dataset in display order.
var DatasetIDs = []DatasetID{Debts, Cash, Portfolio, Receivables, MonthlySources, MonthlyPurchases}

var ErrUnknownDataset = errors.New("unknown dataset")

// ParseDatasetID validates s against the known datasets.
func ParseDatasetID(s string) (DatasetID, error) {
	for _, id := range DatasetIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
}

// Column names shared by templates, aggregates and exports.
const (
	ColDebtKind   = "kind"
	ColDebtAmount = "amount"
	ColDebtDue    = "due"

	ColAccount = "account"
	ColBalance = "balance"

	ColClient = "client"
	ColAmount = "amount"

	ColSymbol = "symbol"
	ColShares = "shares"
	ColPrice  = "price"
	ColTarget = "target"

	ColSource = "source"
	ColItem   = "item"
)

// Aggregate reduces a snapshot to a single total.
type Aggregate func(rows []Row) decimal.Decimal

// SumField totals one numeric column.
func SumField(name string) Aggregate {
	return func(rows []Row) decimal.Decimal {
		total := decimal.Zero
		for _, r := range rows {
			total = total.Add(decimal.NewFromFloat(r.Num(name)))
		}
		return total
	}
}

// SumProduct totals a*b across rows, e.g. shares times price.
func SumProduct(a, b string) Aggregate {
	return func(rows []Row) decimal.Decimal {
		total := decimal.Zero
		for _, r := range rows {
			total = total.Add(decimal.NewFromFloat(r.Num(a)).Mul(decimal.NewFromFloat(r.Num(b))))
		}
		return total
	}
}

// Computed is a read-only column derived from a row.
type Computed struct {
	Name    string
	Label   string
	Compute func(Row) decimal.Decimal
}

// Dataset is a schema-typed record collection tracked over time.
type Dataset struct {
	ID       DatasetID
	Title    string
	Schema   Schema
	Computed []Computed
	Template []Row
	Total    Aggregate
	// TotalColumn names the column the total row sits under in exports.
	TotalColumn string
}

// WithTemplate returns a copy of d whose template is a clone of rows.
func (d Dataset) WithTemplate(rows []Row) Dataset {
	d.Template = d.Schema.CloneRows(rows)
	return d
}

// Schemas returns the datasets with empty templates; seed data fills them.
func Schemas() map[DatasetID]Dataset {
	return map[DatasetID]Dataset{
		Debts: {
			ID:    Debts,
			Title: "Debts and taxes",
			Schema: Schema{
				{Name: ColDebtKind, Label: "Debt / tax", Kind: Text},
				{Name: ColDebtAmount, Label: "Amount", Kind: Number},
				{Name: ColDebtDue, Label: "Due", Kind: Text},
			},
			Total:       SumField(ColDebtAmount),
			TotalColumn: ColDebtAmount,
		},
		Cash: {
			ID:    Cash,
			Title: "Cash accounts",
			Schema: Schema{
				{Name: ColAccount, Label: "Account", Kind: Text},
				{Name: ColBalance, Label: "Balance", Kind: Number},
			},
			Total:       SumField(ColBalance),
			TotalColumn: ColBalance,
		},
		Receivables: {
			ID:    Receivables,
			Title: "Receivables",
			Schema: Schema{
				{Name: ColClient, Label: "Client", Kind: Text},
				{Name: ColAmount, Label: "Amount receivable", Kind: Number},
			},
			Total:       SumField(ColAmount),
			TotalColumn: ColAmount,
		},
		Portfolio: {
			ID:    Portfolio,
			Title: "Portfolio",
			Schema: Schema{
				{Name: ColSymbol, Label: "Symbol", Kind: Text},
				{Name: ColShares, Label: "Shares", Kind: Number},
				{Name: ColPrice, Label: "Current price", Kind: Number},
				{Name: ColTarget, Label: "12-month target", Kind: Number},
			},
			Computed: []Computed{
				{Name: "currentValue", Label: "Current value", Compute: product(ColShares, ColPrice)},
				{Name: "targetValue", Label: "Target value", Compute: product(ColShares, ColTarget)},
			},
			Total:       SumProduct(ColShares, ColPrice),
			TotalColumn: "currentValue",
		},
		MonthlySources: {
			ID:    MonthlySources,
			Title: "Monthly income sources",
			Schema: Schema{
				{Name: ColAmount, Label: "Amount", Kind: Number},
				{Name: ColSource, Label: "Source", Kind: Text},
			},
			Total:       SumField(ColAmount),
			TotalColumn: ColAmount,
		},
		MonthlyPurchases: {
			ID:    MonthlyPurchases,
			Title: "Monthly purchases",
			Schema: Schema{
				{Name: ColAmount, Label: "Price", Kind: Number},
				{Name: ColItem, Label: "Purchase", Kind: Text},
			},
			Total:       SumField(ColAmount),
			TotalColumn: ColAmount,
		},
	}
}

func product(a, b string) func(Row) decimal.Decimal {
	return func(r Row) decimal.Decimal {
		return decimal.NewFromFloat(r.Num(a)).Mul(decimal.NewFromFloat(r.Num(b)))
	}
}
