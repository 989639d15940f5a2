package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/cache"
	"repdayAPI/internal/store"
	"repdayAPI/internal/user"
)

const maxDisplayNameLength = 128

type UserService struct {
	db     store.Store
	access auth.Elevator
	now    func() time.Time
	cache  cache.LeaderboardCache
	logger *log.Logger
}

type UserOption func(*UserService)

// WithUserLeaderboardCache lets profile changes invalidate the boards that
// show the user's display name.
func WithUserLeaderboardCache(c cache.LeaderboardCache) UserOption {
	return func(s *UserService) { s.cache = c }
}

func WithUserLogger(l *log.Logger) UserOption {
	return func(s *UserService) { s.logger = l }
}

func NewUserService(db store.Store, access auth.Elevator, now func() time.Time, opts ...UserOption) *UserService {
	if now == nil {
		now = time.Now
	}
	s := &UserService{
		db:     db,
		access: access,
		now:    now,
		cache:  cache.NopLeaderboardCache{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.db.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetMe(u *user.User) *user.MeResponse {
	return &user.MeResponse{
		ID:            u.ID,
		TelegramID:    u.TelegramID,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		BotChatActive: u.BotChatActive,
		IsSuperadmin:  s.access.IsElevated(u),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (s *UserService) UpdateMe(ctx context.Context, u *user.User, req user.UpdateProfileRequest) (*user.MeResponse, error) {
	if req.DisplayName == nil {
		return s.GetMe(u), nil
	}
	name := strings.TrimSpace(*req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, validation("invalid_display_name", fmt.Sprintf("display_name must be 1 to %d characters", maxDisplayNameLength))
	}

	updated, err := s.db.UpdateDisplayName(ctx, u.ID, name, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.invalidateLeaderboards(ctx, u.ID)
	return s.GetMe(updated), nil
}

func (s *UserService) invalidateLeaderboards(ctx context.Context, userID uuid.UUID) {
	cs, err := s.db.ListChallengesForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list challenges for cache invalidation", "user_id", userID, "err", err)
		return
	}
	for _, c := range cs {
		s.cache.Invalidate(ctx, c.ID)
	}
}

// RegisterDevice stores a push token for the user. Re-registering the same
// token is a no-op.
func (s *UserService) RegisterDevice(ctx context.Context, u *user.User, req user.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return validation("invalid_token", "token is required")
	}
	if !req.Platform.Valid() {
		return validation("invalid_platform", "platform must be ios, android or web")
	}

	err := s.db.AddDeviceToken(ctx, user.DeviceToken{
		UserID:    u.ID,
		Token:     token,
		Platform:  req.Platform,
		CreatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// MarkBotChatActive records whether the bot may message the Telegram user.
// The account is created when the user writes to the bot first.
func (s *UserService) MarkBotChatActive(ctx context.Context, id user.TelegramIdentity, active bool) error {
	u, err := s.db.UpsertTelegramUser(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("failed to resolve telegram user: %w", err)
	}
	if u.BotChatActive == active {
		return nil
	}
	if err := s.db.SetBotChatActive(ctx, u.ID, active, s.now()); err != nil {
		return fmt.Errorf("failed to update bot chat state: %w", err)
	}
	return nil
}
