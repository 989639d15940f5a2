package user

import (
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/types/challenge"
)

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
}

type RegisterDeviceRequest struct {
	Token    string   `json:"token"`
	Platform Platform `json:"platform"`
}

type TelegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type MeResponse struct {
	ID            uuid.UUID `json:"id"`
	TelegramID    int64     `json:"telegram_id"`
	Username      *string   `json:"username"`
	DisplayName   string    `json:"display_name"`
	BotChatActive bool      `json:"bot_chat_active"`
	IsSuperadmin  bool      `json:"is_superadmin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      MeResponse `json:"user"`

	// InviteChallenge is set when the launch carried a known invite code.
	InviteChallenge *challenge.ChallengeShort `json:"invite_challenge"`
}
