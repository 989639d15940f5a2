package leaderboard

import (
	"sort"

	"github.com/google/uuid"
)

type Entry struct {
	UserID        uuid.UUID `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	TotalValue    int       `json:"total_value"`
	CompletedDays int       `json:"completed_days"`
}

// Boards holds the two rankings of a challenge. Both contain every
// participant, zero totals included.
type Boards struct {
	ByValue []Entry `json:"by_value"`
	ByDays  []Entry `json:"by_days"`
}

// Build ranks entries given in participant join order. Ties keep join order.
func Build(entries []Entry) Boards {
	byValue := append([]Entry(nil), entries...)
	sort.SliceStable(byValue, func(i, j int) bool {
		return byValue[i].TotalValue > byValue[j].TotalValue
	})

	byDays := append([]Entry(nil), entries...)
	sort.SliceStable(byDays, func(i, j int) bool {
		return byDays[i].CompletedDays > byDays[j].CompletedDays
	})

	if byValue == nil {
		byValue, byDays = []Entry{}, []Entry{}
	}
	return Boards{ByValue: byValue, ByDays: byDays}
}
