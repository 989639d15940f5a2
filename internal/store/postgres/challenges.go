package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
)

const challengeColumns = `id, title, description, goal_type, daily_goal, unit, duration_days,
	start_date, end_date, is_public, invite_code, creator_id, created_at, updated_at`

func scanChallenge(row interface{ Scan(...any) error }) (*challenge.Challenge, error) {
	var c challenge.Challenge
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.GoalType, &c.DailyGoal, &c.Unit, &c.DurationDays,
		&c.StartDate, &c.EndDate, &c.IsPublic, &c.InviteCode, &c.CreatorID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO challenges (
			title, description, goal_type, daily_goal, unit, duration_days,
			start_date, is_public, invite_code, creator_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + challengeColumns

	created, err := scanChallenge(tx.QueryRow(ctx, query,
		c.Title, c.Description, c.GoalType, c.DailyGoal, c.Unit, c.DurationDays,
		c.StartDate, c.IsPublic, c.InviteCode, c.CreatorID, c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert challenge: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_participants (challenge_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		created.ID, created.CreatorID, challenge.RoleOwner, created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit challenge: %w", err)
	}
	return created, nil
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *Store) GetChallengeByInviteCode(ctx context.Context, code string) (*challenge.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE invite_code = $1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *Store) ListChallengesForUser(ctx context.Context, userID uuid.UUID) ([]challenge.Challenge, error) {
	return s.listChallenges(ctx, `
		SELECT c.id, c.title, c.description, c.goal_type, c.daily_goal, c.unit, c.duration_days,
		       c.start_date, c.end_date, c.is_public, c.invite_code, c.creator_id, c.created_at, c.updated_at
		FROM challenges c
		JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at DESC`, userID)
}

func (s *Store) ListAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	return s.listChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC`)
}

func (s *Store) listChallenges(ctx context.Context, query string, args ...any) ([]challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	out := []challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteChallenge(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
