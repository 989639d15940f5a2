package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var ErrMissingCredentials = errors.New("missing credentials")

// Strategy resolves the calling user of a request. One strategy is chosen
// at startup.
type Strategy interface {
	Authenticate(r *http.Request) (uuid.UUID, error)
}

// TokenStrategy accepts "Authorization: Bearer <jwt>".
type TokenStrategy struct {
	issuer *TokenIssuer
}

func NewTokenStrategy(issuer *TokenIssuer) *TokenStrategy {
	return &TokenStrategy{issuer: issuer}
}

func (s *TokenStrategy) Authenticate(r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return uuid.Nil, ErrMissingCredentials
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return uuid.Nil, ErrMissingCredentials
	}
	return s.issuer.Parse(strings.TrimSpace(token))
}

// FixedDevUserStrategy authenticates every request as the same user. It is
// only wired when AUTH_MODE=dev.
type FixedDevUserStrategy struct {
	UserID uuid.UUID
}

func (s FixedDevUserStrategy) Authenticate(*http.Request) (uuid.UUID, error) {
	return s.UserID, nil
}
