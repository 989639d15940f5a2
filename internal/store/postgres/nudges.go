package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repdayAPI/internal/nudge"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
)

// AppendNudge serializes attempts on one (challenge, from, to) triple with a
// transaction-scoped advisory lock, so the snapshot the guard sees cannot
// change before the insert commits.
func (s *Store) AppendNudge(ctx context.Context, a store.NudgeAttempt, guard store.NudgeGuard) (*challenge.Nudge, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("nudge:%s:%s:%s", a.ChallengeID, a.FromUserID, a.ToUserID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire nudge lock: %w", err)
	}

	snap, err := loadSnapshot(ctx, tx, a)
	if err != nil {
		return nil, err
	}
	if err := guard(snap); err != nil {
		return nil, err
	}

	var n challenge.Nudge
	err = tx.QueryRow(ctx, `
		INSERT INTO nudges (challenge_id, from_user_id, to_user_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, challenge_id, from_user_id, to_user_id, created_at`,
		a.ChallengeID, a.FromUserID, a.ToUserID, a.Now,
	).Scan(&n.ID, &n.ChallengeID, &n.FromUserID, &n.ToUserID, &n.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert nudge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit nudge: %w", err)
	}
	return &n, nil
}

func loadSnapshot(ctx context.Context, q querier, a store.NudgeAttempt) (nudge.Snapshot, error) {
	snap := nudge.Snapshot{FromUserID: a.FromUserID, ToUserID: a.ToUserID}

	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2
		)`, a.ChallengeID, a.ToUserID).Scan(&snap.TargetIsParticipant)
	if err != nil {
		return snap, fmt.Errorf("failed to check target membership: %w", err)
	}

	err = q.QueryRow(ctx, `
		SELECT completed FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2 AND date = $3`,
		a.ChallengeID, a.ToUserID, a.Today).Scan(&snap.TargetCompletedToday)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("failed to load today's progress: %w", err)
	}

	var lastProgress *time.Time
	err = q.QueryRow(ctx, `
		SELECT MAX(updated_at) FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2`,
		a.ChallengeID, a.ToUserID).Scan(&lastProgress)
	if err != nil {
		return snap, fmt.Errorf("failed to load last progress update: %w", err)
	}
	snap.TargetLastProgressAt = lastProgress

	var lastNudge *time.Time
	err = q.QueryRow(ctx, `
		SELECT MAX(created_at) FROM nudges
		WHERE challenge_id = $1 AND from_user_id = $2 AND to_user_id = $3`,
		a.ChallengeID, a.FromUserID, a.ToUserID).Scan(&lastNudge)
	if err != nil {
		return snap, fmt.Errorf("failed to load last nudge: %w", err)
	}
	snap.LastNudgeAt = lastNudge

	return snap, nil
}

func (s *Store) LastNudgesFrom(ctx context.Context, challengeID, fromUserID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT to_user_id, MAX(created_at) FROM nudges
		WHERE challenge_id = $1 AND from_user_id = $2
		GROUP BY to_user_id`, challengeID, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last nudges: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var (
			to uuid.UUID
			at time.Time
		)
		if err := rows.Scan(&to, &at); err != nil {
			return nil, fmt.Errorf("failed to scan nudge: %w", err)
		}
		out[to] = at
	}
	return out, rows.Err()
}
