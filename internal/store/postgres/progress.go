package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
)

const progressColumns = `id, challenge_id, user_id, date, value, completed, updated_at`

func scanProgress(row interface{ Scan(...any) error }) (*challenge.DailyProgress, error) {
	var p challenge.DailyProgress
	if err := row.Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.Date, &p.Value, &p.Completed, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertProgress(ctx context.Context, key store.ProgressKey, now time.Time, fn store.ApplyFunc) (*challenge.DailyProgress, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO daily_progress (challenge_id, user_id, date, value, completed, updated_at)
		VALUES ($1, $2, $3, 0, FALSE, $4)
		ON CONFLICT (challenge_id, user_id, date) DO NOTHING`,
		key.ChallengeID, key.UserID, key.Date, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to ensure progress row: %w", err)
	}

	var (
		id   uuid.UUID
		prev progress.Record
	)
	err = tx.QueryRow(ctx, `
		SELECT id, value, completed FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2 AND date = $3
		FOR UPDATE`,
		key.ChallengeID, key.UserID, key.Date).Scan(&id, &prev.Value, &prev.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to lock progress row: %w", err)
	}

	next := fn(prev)
	row, err := scanProgress(tx.QueryRow(ctx, `
		UPDATE daily_progress SET value = $2, completed = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+progressColumns,
		id, next.Value, next.Completed, now))
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit progress: %w", err)
	}
	return row, nil
}

func (s *Store) GetProgress(ctx context.Context, key store.ProgressKey) (*challenge.DailyProgress, error) {
	row, err := scanProgress(s.db.QueryRow(ctx, `
		SELECT `+progressColumns+` FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2 AND date = $3`,
		key.ChallengeID, key.UserID, key.Date))
	if err != nil {
		return nil, notFound(err)
	}
	return row, nil
}

func (s *Store) ListProgress(ctx context.Context, challengeID, userID uuid.UUID) ([]challenge.DailyProgress, error) {
	return listProgress(ctx, s.db, `
		SELECT `+progressColumns+` FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2
		ORDER BY date`, challengeID, userID)
}

func (s *Store) ListProgressForDate(ctx context.Context, challengeID uuid.UUID, date time.Time) ([]challenge.DailyProgress, error) {
	return listProgress(ctx, s.db, `
		SELECT `+progressColumns+` FROM daily_progress
		WHERE challenge_id = $1 AND date = $2`, challengeID, date)
}

func listProgress(ctx context.Context, q querier, query string, args ...any) ([]challenge.DailyProgress, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	out := []challenge.DailyProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) CountCompletedDays(ctx context.Context, challengeID, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM daily_progress
		WHERE challenge_id = $1 AND user_id = $2 AND completed`, challengeID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed days: %w", err)
	}
	return n, nil
}

func (s *Store) LeaderboardTotals(ctx context.Context, challengeID uuid.UUID) ([]leaderboard.Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.user_id, u.display_name,
		       COALESCE(SUM(dp.value), 0),
		       COUNT(dp.id) FILTER (WHERE dp.completed)
		FROM challenge_participants p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN daily_progress dp ON dp.challenge_id = p.challenge_id AND dp.user_id = p.user_id
		WHERE p.challenge_id = $1
		GROUP BY p.position, p.user_id, u.display_name
		ORDER BY p.position`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard totals: %w", err)
	}
	defer rows.Close()

	out := []leaderboard.Entry{}
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalValue, &e.CompletedDays); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
