package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// A calendar date is represented as a time.Time at midnight UTC so that
// arithmetic and comparisons never cross a DST boundary.

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in the application timezone.
func Today(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return Date(y, m, d)
}

// Normalize strips the clock component of t, keeping its own date.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.Format(DateLayout)
}

func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// DaysBetween counts whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}

// EndDate is the last day of a window of durationDays starting at start.
func EndDate(start time.Time, durationDays int) time.Time {
	return AddDays(Normalize(start), durationDays-1)
}

// Within reports whether day lies in [start, end].
func Within(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}
