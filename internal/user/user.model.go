package user

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TelegramID    int64     `json:"telegram_id" db:"telegram_id"`
	Username      *string   `json:"username" db:"username"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	BotChatActive bool      `json:"bot_chat_active" db:"bot_chat_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// TelegramIdentity is the subset of a Telegram user that identifies an account.
type TelegramIdentity struct {
	TelegramID int64
	Username   *string
	FirstName  string
	LastName   string
}

// DisplayName derives a default display name for a new account.
func (t TelegramIdentity) DisplayName() string {
	name := t.FirstName
	if t.LastName != "" {
		if name != "" {
			name += " "
		}
		name += t.LastName
	}
	if name == "" && t.Username != nil {
		name = *t.Username
	}
	if name == "" {
		name = fmt.Sprintf("User %d", t.TelegramID)
	}
	return name
}

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid || p == PlatformWeb
}

type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  Platform  `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
