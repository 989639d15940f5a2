package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/nudge"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type ProgressKey struct {
	ChallengeID uuid.UUID
	UserID      uuid.UUID
	Date        time.Time
}

// ApplyFunc computes the new state of a progress row from its current state.
// A row that did not exist yet is passed as the zero Record.
type ApplyFunc func(prev progress.Record) progress.Record

type NudgeAttempt struct {
	ChallengeID uuid.UUID
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID

	// Today is the calendar date in the application timezone.
	Today time.Time
	Now   time.Time
}

// StreakFunc derives the current and best streak from one participant's
// progress rows in ascending date order.
type StreakFunc func(rows []challenge.DailyProgress) (current, best int)

// NudgeGuard inspects the state of a nudge triple while it is locked.
// A non-nil error aborts the append and is returned unchanged.
type NudgeGuard func(nudge.Snapshot) error

type Users interface {
	// UpsertTelegramUser creates the account for a telegram id or refreshes
	// its username. The display name of an existing account is kept.
	UpsertTelegramUser(ctx context.Context, id user.TelegramIdentity, now time.Time) (*user.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string, now time.Time) (*user.User, error)
	SetBotChatActive(ctx context.Context, id uuid.UUID, active bool, now time.Time) error
	AddDeviceToken(ctx context.Context, tok user.DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]user.DeviceToken, error)
}

type Challenges interface {
	// CreateChallenge stores c and its creator as owner in one unit of work.
	// ErrConflict is returned when the invite code is taken.
	CreateChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error)
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	GetChallengeByInviteCode(ctx context.Context, code string) (*challenge.Challenge, error)
	ListChallengesForUser(ctx context.Context, userID uuid.UUID) ([]challenge.Challenge, error)
	ListAllChallenges(ctx context.Context) ([]challenge.Challenge, error)
	// DeleteChallenge removes the challenge and every dependent row.
	DeleteChallenge(ctx context.Context, id uuid.UUID) error
}

type Participants interface {
	// AddParticipant is idempotent. created reports whether a row was inserted.
	AddParticipant(ctx context.Context, challengeID, userID uuid.UUID, role challenge.Role, now time.Time) (p *challenge.Participant, created bool, err error)
	GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error)
	// ListParticipants returns participants in join order.
	ListParticipants(ctx context.Context, challengeID uuid.UUID) ([]challenge.Participant, error)
	// RemoveParticipant deletes the participant with its progress and every
	// nudge it sent or received in the challenge.
	RemoveParticipant(ctx context.Context, challengeID, userID uuid.UUID) error
	// RefreshStreak recomputes the participant's streak from its progress
	// rows and stores it. Refreshes of one participant are serialized, so the
	// last one to finish has seen every committed write.
	RefreshStreak(ctx context.Context, challengeID, userID uuid.UUID, fn StreakFunc) (current, best int, err error)
}

type Progress interface {
	// UpsertProgress creates the row if absent, then applies fn under a row
	// lock and stamps updated_at with now.
	UpsertProgress(ctx context.Context, key ProgressKey, now time.Time, fn ApplyFunc) (*challenge.DailyProgress, error)
	GetProgress(ctx context.Context, key ProgressKey) (*challenge.DailyProgress, error)
	// ListProgress returns one user's rows in ascending date order.
	ListProgress(ctx context.Context, challengeID, userID uuid.UUID) ([]challenge.DailyProgress, error)
	ListProgressForDate(ctx context.Context, challengeID uuid.UUID, date time.Time) ([]challenge.DailyProgress, error)
	CountCompletedDays(ctx context.Context, challengeID, userID uuid.UUID) (int, error)
	// LeaderboardTotals returns one entry per participant in join order.
	LeaderboardTotals(ctx context.Context, challengeID uuid.UUID) ([]leaderboard.Entry, error)
}

type Nudges interface {
	// AppendNudge evaluates guard and appends the nudge atomically with
	// respect to other attempts on the same triple.
	AppendNudge(ctx context.Context, a NudgeAttempt, guard NudgeGuard) (*challenge.Nudge, error)
	// LastNudgesFrom maps each target to the newest nudge fromUserID sent them.
	LastNudgesFrom(ctx context.Context, challengeID, fromUserID uuid.UUID) (map[uuid.UUID]time.Time, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m challenge.Message) (*challenge.Message, error)
	// ListMessages returns up to limit messages, newest first.
	ListMessages(ctx context.Context, challengeID uuid.UUID, limit int) ([]challenge.Message, error)
}

type Store interface {
	Users
	Challenges
	Participants
	Progress
	Nudges
	Messages

	Ping(ctx context.Context) error
	Close()
}
