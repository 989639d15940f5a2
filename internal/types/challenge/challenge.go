package challenge

import (
	"time"

	"github.com/google/uuid"
)

type GoalType string

const (
	GoalQuantitative GoalType = "quantitative"
	GoalTime         GoalType = "time"
	GoalCheckin      GoalType = "checkin"
)

func (g GoalType) Valid() bool {
	switch g {
	case GoalQuantitative, GoalTime, GoalCheckin:
		return true
	}
	return false
}

// CountBased reports whether the goal is measured by a numeric daily target.
func (g GoalType) CountBased() bool {
	return g == GoalQuantitative || g == GoalTime
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Challenge struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  *string   `json:"description" db:"description"`
	GoalType     GoalType  `json:"goal_type" db:"goal_type"`
	DailyGoal    *int      `json:"daily_goal" db:"daily_goal"`
	Unit         string    `json:"unit" db:"unit"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	StartDate    time.Time `json:"start_date" db:"start_date"`
	EndDate      time.Time `json:"end_date" db:"end_date"`
	IsPublic     bool      `json:"is_public" db:"is_public"`
	InviteCode   string    `json:"invite_code" db:"invite_code"`
	CreatorID    uuid.UUID `json:"creator_id" db:"creator_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Participant struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ChallengeID   uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Role          Role      `json:"role" db:"role"`
	JoinedAt      time.Time `json:"joined_at" db:"joined_at"`
	StreakCurrent int       `json:"streak_current" db:"streak_current"`
	StreakBest    int       `json:"streak_best" db:"streak_best"`

	// DisplayName is joined from users when listing participants.
	DisplayName string `json:"display_name" db:"display_name"`
}

type DailyProgress struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Date        time.Time `json:"date" db:"date"`
	Value       int       `json:"value" db:"value"`
	Completed   bool      `json:"completed" db:"completed"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Nudge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	FromUserID  uuid.UUID `json:"from_user_id" db:"from_user_id"`
	ToUserID    uuid.UUID `json:"to_user_id" db:"to_user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Message struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Text        string    `json:"text" db:"text"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	DisplayName string `json:"display_name" db:"display_name"`
}
