package core

import (
	"fmt"
	"strings"
	"time"
)

// YearMonth identifies a calendar month. The zero value means "unset".
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth normalizes out-of-range months, so (2025, 13) is 2026-01.
func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: time.January}.AddMonths(int(month) - 1)
}

// ParseYearMonth parses "YYYY-MM". The empty string yields the zero value.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return YearMonth{}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// AddMonths returns the month n months after ym, carrying the year.
func (ym YearMonth) AddMonths(n int) YearMonth {
	total := ym.Year*12 + int(ym.Month) - 1 + n
	year := total / 12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	return YearMonth{Year: year, Month: time.Month(month + 1)}
}

// Compare returns -1, 0 or +1.
func (ym YearMonth) Compare(o YearMonth) int {
	switch {
	case ym.Year < o.Year:
		return -1
	case ym.Year > o.Year:
		return 1
	case ym.Month < o.Month:
		return -1
	case ym.Month > o.Month:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(o YearMonth) bool {
	return ym.Compare(o) < 0
}

// AtOrAfter reports whether ym >= start. A zero start matches every month.
func (ym YearMonth) AtOrAfter(start YearMonth) bool {
	return start.IsZero() || ym.Compare(start) >= 0
}

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Label is the short human form used in projections, e.g. "Aug 2025".
func (ym YearMonth) Label() string {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	v, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = v
	return nil
}
