package challenge

import (
	"time"

	"github.com/google/uuid"
)

type CreateChallengeRequest struct {
	Title        string   `json:"title"`
	Description  *string  `json:"description"`
	GoalType     GoalType `json:"goal_type"`
	DailyGoal    *int     `json:"daily_goal"`
	Unit         string   `json:"unit"`
	DurationDays int      `json:"duration_days"`
	StartDate    string   `json:"start_date"`
	IsPublic     *bool    `json:"is_public"`
}

type ProgressUpdateRequest struct {
	Date      string `json:"date"`
	Delta     *int   `json:"delta,omitempty"`
	SetValue  *int   `json:"set_value,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
}

type MessageCreateRequest struct {
	Text string `json:"text"`
}

type ChallengeShort struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	GoalType     GoalType  `json:"goal_type"`
	Unit         string    `json:"unit"`
	DailyGoal    *int      `json:"daily_goal"`
	DurationDays int       `json:"duration_days"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`

	TodayProgressValue   *int     `json:"today_progress_value"`
	TodayProgressPercent *float64 `json:"today_progress_percent"`
	DaysCompleted        *int     `json:"days_completed"`
}

type ParticipantView struct {
	ID             uuid.UUID  `json:"id"`
	DisplayName    string     `json:"display_name"`
	Role           Role       `json:"role"`
	TodayValue     int        `json:"today_value"`
	TodayCompleted bool       `json:"today_completed"`
	StreakCurrent  int        `json:"streak_current"`
	StreakBest     int        `json:"streak_best"`
	LastNudgeAt    *time.Time `json:"last_nudge_at"`
}

type ChallengeDetail struct {
	ChallengeShort
	IsPublic      bool              `json:"is_public"`
	InviteCode    *string           `json:"invite_code"`
	CreatorID     uuid.UUID         `json:"creator_id"`
	IsOwner       bool              `json:"is_owner"`
	IsParticipant bool              `json:"is_participant"`
	Participants  []ParticipantView `json:"participants"`
}

type ProgressResponse struct {
	Date          string    `json:"date"`
	Value         int       `json:"value"`
	Completed     bool      `json:"completed"`
	Percent       float64   `json:"percent"`
	UpdatedAt     time.Time `json:"updated_at"`
	StreakCurrent int       `json:"streak_current"`
	StreakBest    int       `json:"streak_best"`
}

type DayPoint struct {
	Date    string  `json:"date"`
	Percent float64 `json:"percent"`
	Value   int     `json:"value"`
}

type LeaderboardItem struct {
	UserID        uuid.UUID `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	TotalValue    int       `json:"total_value"`
	CompletedDays int       `json:"completed_days"`
}

type ChallengeStats struct {
	CompletedDays      int               `json:"completed_days"`
	MissedDays         int               `json:"missed_days"`
	Points             []DayPoint        `json:"points"`
	LeaderboardByValue []LeaderboardItem `json:"leaderboard_by_value"`
	LeaderboardByDays  []LeaderboardItem `json:"leaderboard_by_days"`
}

type NudgeResponse struct {
	OK                   bool      `json:"ok"`
	NudgedAt             time.Time `json:"nudged_at"`
	NextNudgeAvailableAt time.Time `json:"next_nudge_available_at"`
}

type MessageView struct {
	ID          uuid.UUID `json:"id"`
	ChallengeID uuid.UUID `json:"challenge_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

type InviteQRResponse struct {
	InviteCode   string `json:"invite_code"`
	Link         string `json:"link"`
	QRCodeBase64 string `json:"qr_code_base64"`
}
