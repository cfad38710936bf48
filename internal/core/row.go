package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldKind is the type of a dataset column.
type FieldKind int

const (
	Number FieldKind = iota
	Text
)

func (k FieldKind) String() string {
	if k == Text {
		return "text"
	}
	return "number"
}

func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FieldKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "number":
		*k = Number
	case "text":
		*k = Text
	default:
		return fmt.Errorf("unknown field kind %q", string(b))
	}
	return nil
}

// Field describes one column of a dataset.
type Field struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Kind  FieldKind `json:"kind"`
}

// Row maps field names to values. Numbers are float64, text is string.
type Row map[string]any

// Schema is the ordered column list of a dataset.
type Schema []Field

// Field looks a column up by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// NewRow returns a row with every column at its zero value.
func (s Schema) NewRow() Row {
	r := make(Row, len(s))
	for _, f := range s {
		if f.Kind == Number {
			r[f.Name] = 0.0
		} else {
			r[f.Name] = ""
		}
	}
	return r
}

// Clone copies the schema columns of r into a fresh row, normalizing
// numbers to float64 and text to string. Keys outside the schema are dropped.
func (s Schema) Clone(r Row) Row {
	out := make(Row, len(s))
	for _, f := range s {
		v := r[f.Name]
		if f.Kind == Number {
			out[f.Name] = ToNum(v)
			continue
		}
		switch t := v.(type) {
		case nil:
			out[f.Name] = ""
		case string:
			out[f.Name] = t
		default:
			out[f.Name] = fmt.Sprint(t)
		}
	}
	return out
}

// CloneRows clones every row. The result is never nil.
func (s Schema) CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = s.Clone(r)
	}
	return out
}

// Num reads a numeric column.
func (r Row) Num(name string) float64 {
	return ToNum(r[name])
}

// Str reads a text column.
func (r Row) Str(name string) string {
	switch t := r[name].(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// ToNum converts loosely typed input to a finite number, 0 when it cannot.
// Strings may contain spaces as thousands separators and a decimal comma.
func ToNum(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		s := strings.ReplaceAll(t, " ", "")
		s = strings.Replace(s, ",", ".", 1)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = n
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
