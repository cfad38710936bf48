package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DayFormat is the layout used for snapshot keys.
const DayFormat = "2006-01-02"

// Day is a calendar date in ISO YYYY-MM-DD form. Lexicographic order of
// valid values is chronological order.
type Day string

// Clock returns the current instant. Production code passes time.Now.
type Clock func() time.Time

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidYearMonth = errors.New("invalid year-month")
)

var dayPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// ParseDay validates s and returns it as a Day.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if !dayPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	if _, err := time.Parse(DayFormat, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return Day(s), nil
}

// MustDay is ParseDay for literals known to be valid.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayFormat))
}

// Today returns the current calendar day according to clock.
func Today(clock Clock) Day {
	if clock == nil {
		clock = time.Now
	}
	return DayOf(clock())
}

// Valid reports whether d is a well-formed calendar date.
func (d Day) Valid() bool {
	_, err := ParseDay(string(d))
	return err == nil
}

// Time returns midnight UTC of d. An invalid day yields the zero time.
func (d Day) Time() time.Time {
	t, err := time.Parse(DayFormat, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Prev returns the calendar day immediately preceding d.
func (d Day) Prev() Day {
	return d.AddDays(-1)
}

// YearMonth returns the month d falls in.
func (d Day) YearMonth() YearMonth {
	t := d.Time()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (d Day) String() string {
	return string(d)
}
