package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
)

func (s *Store) CreateMessage(ctx context.Context, m challenge.Message) (*challenge.Message, error) {
	err := s.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO challenge_messages (challenge_id, user_id, text, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id
		)
		SELECT i.id, u.display_name FROM inserted i JOIN users u ON u.id = i.user_id`,
		m.ChallengeID, m.UserID, m.Text, m.CreatedAt).Scan(&m.ID, &m.DisplayName)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, challengeID uuid.UUID, limit int) ([]challenge.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.challenge_id, m.user_id, m.text, m.created_at, u.display_name
		FROM challenge_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.challenge_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2`, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := []challenge.Message{}
	for rows.Next() {
		var m challenge.Message
		if err := rows.Scan(&m.ID, &m.ChallengeID, &m.UserID, &m.Text, &m.CreatedAt, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
