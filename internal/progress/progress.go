package progress

import "math"

// MaxValue bounds a stored progress value and a daily goal. Values are kept
// in 32-bit integer columns.
const MaxValue = math.MaxInt32

// Record is the mutable part of a daily progress row.
type Record struct {
	Value     int
	Completed bool
}

// Update describes one progress write. SetValue takes precedence over Delta
// when both are present. A nil Completed means completion is derived from
// the value.
type Update struct {
	Delta     *int
	SetValue  *int
	Completed *bool
}

// DeriveCompleted reports whether value meets a positive daily goal.
func DeriveCompleted(value int, dailyGoal *int) bool {
	if dailyGoal == nil || *dailyGoal <= 0 {
		return false
	}
	return value >= *dailyGoal
}

// Percent is the share of the daily goal reached, capped at 100. Without a
// positive goal it is 100 for a completed day and 0 otherwise.
func Percent(value int, dailyGoal *int, completed bool) float64 {
	if dailyGoal == nil || *dailyGoal <= 0 {
		if completed {
			return 100
		}
		return 0
	}
	p := float64(value) / float64(*dailyGoal) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Apply computes the record that results from writing u over prev. The
// resulting value saturates within [0, MaxValue].
func Apply(prev Record, u Update, dailyGoal *int) Record {
	value := prev.Value
	switch {
	case u.SetValue != nil:
		value = *u.SetValue
	case u.Delta != nil:
		value = addSaturating(prev.Value, *u.Delta)
	}
	value = min(max(value, 0), MaxValue)

	next := Record{Value: value}
	if u.Completed != nil {
		next.Completed = *u.Completed
	} else {
		next.Completed = DeriveCompleted(value, dailyGoal)
	}
	return next
}

func addSaturating(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
