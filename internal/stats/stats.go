package stats

import (
	"time"

	"repdayAPI/internal/progress"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
)

type DayPoint struct {
	Date    time.Time
	Percent float64
	Value   int
}

// Series is one participant's day-by-day record over the elapsed part of a
// challenge window.
type Series struct {
	CompletedDays int
	MissedDays    int
	Points        []DayPoint
}

// BuildSeries emits one point per calendar day in [start, min(end, today)].
// Days without a progress row count as missed with value 0. The series is
// empty when the challenge has not started yet.
func BuildSeries(start, end, today time.Time, rows []challenge.DailyProgress, dailyGoal *int) Series {
	start, end, today = calendar.Normalize(start), calendar.Normalize(end), calendar.Normalize(today)

	last := end
	if today.Before(last) {
		last = today
	}
	if last.Before(start) {
		return Series{Points: []DayPoint{}}
	}

	byDate := make(map[time.Time]challenge.DailyProgress, len(rows))
	for _, r := range rows {
		byDate[calendar.Normalize(r.Date)] = r
	}

	s := Series{Points: make([]DayPoint, 0, calendar.DaysBetween(start, last)+1)}
	for d := start; !d.After(last); d = calendar.AddDays(d, 1) {
		row, ok := byDate[d]
		if !ok {
			s.MissedDays++
			s.Points = append(s.Points, DayPoint{Date: d})
			continue
		}
		if row.Completed {
			s.CompletedDays++
		} else {
			s.MissedDays++
		}
		s.Points = append(s.Points, DayPoint{
			Date:    d,
			Percent: progress.Percent(row.Value, dailyGoal, row.Completed),
			Value:   row.Value,
		})
	}
	return s
}
