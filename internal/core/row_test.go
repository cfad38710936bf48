package core

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestToNum(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 2.635, 2.635},
		{"int", 7, 7},
		{"json number", json.Number("12.5"), 12.5},
		{"spaced thousands", "27 000", 27000},
		{"decimal comma", "2,5", 2.5},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
		{"infinity", "Inf", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToNum(tt.in); got != tt.want {
				t.Errorf("ToNum(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSchema_Clone(t *testing.T) {
	schema := Schemas()[Portfolio].Schema
	src := Row{ColSymbol: "ATB", ColShares: "69737", ColPrice: 2.635, "stray": true}

	got := schema.Clone(src)
	want := Row{ColSymbol: "ATB", ColShares: 69737.0, ColPrice: 2.635, ColTarget: 0.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Clone() mismatch (-want +got):\n%s", diff)
	}

	got[ColPrice] = 99.0
	if src[ColPrice] != 2.635 {
		t.Error("Clone() result aliases the source row")
	}
}

func TestAggregates(t *testing.T) {
	rows := []Row{
		{ColShares: 10.0, ColPrice: 2.5, ColBalance: 100.0},
		{ColShares: 4.0, ColPrice: "3", ColBalance: "50"},
	}
	if got := SumField(ColBalance)(rows); !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("SumField() = %s, want 150", got)
	}
	if got := SumProduct(ColShares, ColPrice)(rows); !got.Equal(decimal.NewFromInt(37)) {
		t.Errorf("SumProduct() = %s, want 37", got)
	}
	if got := SumField(ColBalance)(nil); !got.IsZero() {
		t.Errorf("SumField(nil) = %s, want 0", got)
	}
}

func TestParseDatasetID(t *testing.T) {
	if id, err := ParseDatasetID("recv"); err != nil || id != Receivables {
		t.Errorf("ParseDatasetID(recv) = %q, %v", id, err)
	}
	if _, err := ParseDatasetID("nope"); err == nil {
		t.Error("ParseDatasetID(nope) expected error")
	}
}

func TestFormatAmount(t *testing.T) {
	got := FormatAmount(decimal.RequireFromString("1234.4"))
	if got == "" || !containsDigits(got, "1", "234") {
		t.Errorf("FormatAmount(1234.4) = %q", got)
	}
}

func containsDigits(s string, parts ...string) bool {
	for _, p := range parts {
		found := false
		for i := 0; i+len(p) <= len(s); i++ {
			if s[i:i+len(p)] == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
