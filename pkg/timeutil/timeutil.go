// Package timeutil provides calendar-date utilities for the progress engine.
// Streaks and daily activity are evaluated at calendar-day granularity in UTC;
// callers normalize timestamps to dates before they reach the domain layer.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the canonical wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates a time to its calendar date (00:00:00 UTC).
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date (00:00:00 UTC).
func Today() time.Time {
	return DateOnly(time.Now())
}

// Date creates a calendar date in UTC.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date in the canonical YYYY-MM-DD format.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a time as a canonical YYYY-MM-DD date string.
func FormatDate(t time.Time) string {
	return DateOnly(t).Format(DateLayout)
}

// DaysBetween returns the number of whole calendar days from a to b.
// The result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	da := DateOnly(a)
	db := DateOnly(b)
	return int(db.Sub(da).Hours() / 24)
}

// SameDay reports whether two times fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// IsNextDay reports whether b is exactly one calendar day after a.
func IsNextDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 1
}

// StartOfDay returns the start of the day (00:00:00 UTC) for t.
func StartOfDay(t time.Time) time.Time {
	return DateOnly(t)
}

// EndOfDay returns the end of the day (23:59:59.999999999 UTC) for t.
func EndOfDay(t time.Time) time.Time {
	return DateOnly(t).Add(24*time.Hour - time.Nanosecond)
}
