package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/store"
	"repdayAPI/internal/user"
)

const userColumns = `id, telegram_id, username, display_name, bot_chat_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.DisplayName, &u.BotChatActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpsertTelegramUser(ctx context.Context, id user.TelegramIdentity, now time.Time) (*user.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username, updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, id.TelegramID, id.Username, id.DisplayName(), now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Store) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string, now time.Time) (*user.User, error) {
	query := `UPDATE users SET display_name = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(s.db.QueryRow(ctx, query, id, name, now))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Store) SetBotChatActive(ctx context.Context, id uuid.UUID, active bool, now time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET bot_chat_active = $2, updated_at = $3 WHERE id = $1`, id, active, now)
	if err != nil {
		return fmt.Errorf("failed to update bot chat flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddDeviceToken(ctx context.Context, tok user.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform`

	if _, err := s.db.Exec(ctx, query, tok.Token, tok.UserID, tok.Platform, tok.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]user.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, token, platform, created_at
		FROM device_tokens WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var out []user.DeviceToken
	for rows.Next() {
		var d user.DeviceToken
		if err := rows.Scan(&d.UserID, &d.Token, &d.Platform, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
