package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
)

const participantSelect = `
	SELECT p.id, p.challenge_id, p.user_id, p.role, p.joined_at, p.streak_current, p.streak_best, u.display_name
	FROM challenge_participants p
	JOIN users u ON u.id = p.user_id`

func scanParticipant(row interface{ Scan(...any) error }) (*challenge.Participant, error) {
	var p challenge.Participant
	err := row.Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.Role, &p.JoinedAt, &p.StreakCurrent, &p.StreakBest, &p.DisplayName)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) AddParticipant(ctx context.Context, challengeID, userID uuid.UUID, role challenge.Role, now time.Time) (*challenge.Participant, bool, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO challenge_participants (challenge_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (challenge_id, user_id) DO NOTHING
		RETURNING id`,
		challengeID, userID, role, now).Scan(&id)

	created := true
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = false
	case isForeignKeyViolation(err):
		return nil, false, store.ErrNotFound
	case err != nil:
		return nil, false, fmt.Errorf("failed to add participant: %w", err)
	}

	p, err := s.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

func (s *Store) GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	p, err := scanParticipant(s.db.QueryRow(ctx, participantSelect+` WHERE p.challenge_id = $1 AND p.user_id = $2`, challengeID, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context, challengeID uuid.UUID) ([]challenge.Participant, error) {
	rows, err := s.db.Query(ctx, participantSelect+` WHERE p.challenge_id = $1 ORDER BY p.position`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	out := []challenge.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RemoveParticipant deletes dependents explicitly in one transaction. The
// composite foreign keys would cascade as well.
func (s *Store) RemoveParticipant(ctx context.Context, challengeID, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM nudges
		WHERE challenge_id = $1 AND (from_user_id = $2 OR to_user_id = $2)`, challengeID, userID); err != nil {
		return fmt.Errorf("failed to delete nudges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM daily_progress WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) RefreshStreak(ctx context.Context, challengeID, userID uuid.UUID, fn store.StreakFunc) (int, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM challenge_participants
		WHERE challenge_id = $1 AND user_id = $2
		FOR UPDATE`, challengeID, userID).Scan(&id)
	if err != nil {
		return 0, 0, notFound(err)
	}

	rows, err := listProgress(ctx, tx, `
		SELECT `+progressColumns+` FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2
		ORDER BY date`, challengeID, userID)
	if err != nil {
		return 0, 0, err
	}

	current, best := fn(rows)
	if _, err := tx.Exec(ctx, `
		UPDATE challenge_participants SET streak_current = $2, streak_best = $3
		WHERE id = $1`, id, current, best); err != nil {
		return 0, 0, fmt.Errorf("failed to update streak: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit streak: %w", err)
	}
	return current, best, nil
}
