package streak

import (
	"sort"
	"time"

	"repdayAPI/internal/types/calendar"
)

// Compute returns the current and best runs of consecutive completed dates.
// The current run ends today, or yesterday while today is still open.
// Dates after today are ignored.
func Compute(completed []time.Time, today time.Time) (current, best int) {
	today = calendar.Normalize(today)

	seen := make(map[time.Time]bool, len(completed))
	days := make([]time.Time, 0, len(completed))
	for _, d := range completed {
		d = calendar.Normalize(d)
		if d.After(today) || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0, 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	for i, d := range days {
		if i > 0 && calendar.DaysBetween(days[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	anchor := today
	if !seen[anchor] {
		anchor = calendar.AddDays(today, -1)
	}
	for seen[anchor] {
		current++
		anchor = calendar.AddDays(anchor, -1)
	}
	return current, best
}
