package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/store"
	"repdayAPI/internal/user"
)

// DevTelegramID identifies the account used when a dev launch payload
// carries no user.
const DevTelegramID int64 = 1

type AuthService struct {
	db         store.Store
	verifier   auth.InitDataVerifier
	issuer     *auth.TokenIssuer
	users      *UserService
	challenges *ChallengeService
	devMode    bool
	now        func() time.Time
	logger     *log.Logger
}

func NewAuthService(db store.Store, verifier auth.InitDataVerifier, issuer *auth.TokenIssuer, users *UserService, challenges *ChallengeService, devMode bool, logger *log.Logger) *AuthService {
	return &AuthService{
		db:         db,
		verifier:   verifier,
		issuer:     issuer,
		users:      users,
		challenges: challenges,
		devMode:    devMode,
		now:        time.Now,
		logger:     logger,
	}
}

// LoginTelegram exchanges a mini app launch payload for a bearer token.
// A start parameter naming a known invite code is resolved to the challenge
// summary so the client can offer to join.
func (s *AuthService) LoginTelegram(ctx context.Context, req user.TelegramAuthRequest) (*user.AuthResponse, error) {
	data, err := s.verifier.Verify(req.InitData)
	if err != nil {
		s.logger.Warn("telegram login rejected", "err", err)
		return nil, ErrInvalidInitData
	}

	var identity user.TelegramIdentity
	switch {
	case data.User != nil:
		identity = data.User.Identity()
	case s.devMode:
		identity = user.TelegramIdentity{TelegramID: DevTelegramID}
	default:
		return nil, ErrInvalidInitData
	}

	u, err := s.db.UpsertTelegramUser(ctx, identity, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	token, expiresAt, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	resp := &user.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *s.users.GetMe(u),
	}

	if code := strings.TrimSpace(data.StartParam); code != "" {
		short, err := s.challenges.ResolveInvite(ctx, code)
		switch {
		case err == nil:
			resp.InviteChallenge = short
		case errors.Is(err, ErrInviteNotFound):
		default:
			s.logger.Warn("failed to resolve start param", "start_param", code, "err", err)
		}
	}

	s.logger.Info("telegram login", "user_id", u.ID, "telegram_id", u.TelegramID)
	return resp, nil
}

// EnsureDevUser creates the account used by the fixed dev auth strategy.
func EnsureDevUser(ctx context.Context, db store.Store) (*user.User, error) {
	u, err := db.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: DevTelegramID}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create dev user: %w", err)
	}
	return u, nil
}
