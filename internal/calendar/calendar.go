package calendar

import (
	"fmt"
	"strings"
	"time"
)

// KeyLayout is the date key format used in slot records.
const KeyLayout = "2006-01-02"

// DefaultClosedWeekday is the weekday with no bookable slots.
const DefaultClosedWeekday = time.Monday

// Date is a civil calendar date with no time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes the given components (2024-02-30 becomes 2024-03-01).
func NewDate(year int, month time.Month, day int) Date {
	return dateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Today returns the civil date of t in t's own location.
func Today(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseKey parses a YYYY-MM-DD key.
func ParseKey(s string) (Date, error) {
	t, err := time.Parse(KeyLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date key %q: %w", s, err)
	}
	return dateOf(t), nil
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays steps n calendar days (negative n steps back).
func (d Date) AddDays(n int) Date {
	return dateOf(d.midnight().AddDate(0, 0, n))
}

// Weekday follows time.Weekday: Sunday is 0, Monday is 1.
func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmp(d.Year, other.Year)
	case d.Month != other.Month:
		return cmp(int(d.Month), int(other.Month))
	default:
		return cmp(d.Day, other.Day)
	}
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

// In reports whether d lies in the inclusive range [from, to].
func (d Date) In(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

// String renders the YYYY-MM-DD key.
func (d Date) String() string {
	return FormatKey(d)
}

// FormatKey renders d as YYYY-MM-DD with zero-padded month and day.
func FormatKey(d Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsClosedDay reports whether d falls on the closed weekday.
func IsClosedDay(d Date, closed time.Weekday) bool {
	return d.Weekday() == closed
}

// EnumerateWindow returns today, today+1, ..., today+days-1.
func EnumerateWindow(today Date, days int) []Date {
	if days <= 0 {
		return nil
	}
	out := make([]Date, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, today.AddDays(i))
	}
	return out
}

// ParseWeekday accepts English weekday names ("monday", "Mon") case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || name == full[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
