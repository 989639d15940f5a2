package nudge

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/apperr"
)

const (
	// Cooldown is the minimum gap between two nudges on the same
	// (challenge, sender, target) triple.
	Cooldown = time.Hour

	// RecentActivityWindow suppresses nudges to someone who just logged progress.
	RecentActivityWindow = time.Hour
)

const CodeRateLimited = "rate_limited"

var (
	ErrSelfNudge = apperr.Validation("self_nudge", "you cannot nudge yourself")

	ErrTargetNotParticipant = apperr.NotFound("target_not_participant", "target user is not a participant of this challenge")

	ErrAlreadyCompletedToday = apperr.Validation("already_completed_today", "target has already completed today's goal")

	ErrRecentProgressUpdate = apperr.Validation("recent_progress_update", "target updated progress within the last hour")
)

// Snapshot is the state the guard chain is evaluated against. It must be
// read under the same lock that protects the append.
type Snapshot struct {
	FromUserID uuid.UUID
	ToUserID   uuid.UUID

	TargetIsParticipant  bool
	TargetCompletedToday bool

	// TargetLastProgressAt is the most recent progress update of the target
	// in this challenge, on any day.
	TargetLastProgressAt *time.Time

	// LastNudgeAt is the newest nudge on this triple.
	LastNudgeAt *time.Time
}

// CheckSelf fails for a nudge addressed to its own sender.
func CheckSelf(from, to uuid.UUID) error {
	if from == to {
		return ErrSelfNudge
	}
	return nil
}

// Evaluate applies the guards in order and returns the first failure.
func Evaluate(s Snapshot, now time.Time) error {
	if err := CheckSelf(s.FromUserID, s.ToUserID); err != nil {
		return err
	}
	if !s.TargetIsParticipant {
		return ErrTargetNotParticipant
	}
	if s.TargetCompletedToday {
		return ErrAlreadyCompletedToday
	}
	if s.TargetLastProgressAt != nil && !s.TargetLastProgressAt.Before(now.Add(-RecentActivityWindow)) {
		return ErrRecentProgressUpdate
	}
	if s.LastNudgeAt != nil && !s.LastNudgeAt.Before(now.Add(-Cooldown)) {
		wait := RetryAfter(*s.LastNudgeAt, now)
		return apperr.RateLimited(CodeRateLimited,
			fmt.Sprintf("you can nudge this user again in %d seconds", int(wait.Seconds())), wait)
	}
	return nil
}

// RetryAfter is the time left until the cooldown after lastNudge expires,
// rounded up to whole seconds.
func RetryAfter(lastNudge, now time.Time) time.Duration {
	remaining := lastNudge.Add(Cooldown).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(remaining.Seconds())) * time.Second
}

// NextAvailableAt is when the next nudge on the triple becomes allowed.
func NextAvailableAt(nudgedAt time.Time) time.Time {
	return nudgedAt.Add(Cooldown)
}
