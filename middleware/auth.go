package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/user"
)

type contextKey string

const userKey contextKey = "user"

// UserLookup resolves the account behind an authenticated id.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Authenticator struct {
	strategy auth.Strategy
	users    UserLookup
	logger   *log.Logger
}

func NewAuthenticator(strategy auth.Strategy, users UserLookup, logger *log.Logger) *Authenticator {
	return &Authenticator{strategy: strategy, users: users, logger: logger}
}

// Middleware authenticates the request and stores the caller in its context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.strategy.Authenticate(r)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingCredentials) {
				a.logger.Debug("token verification failed", "err", err)
			}
			respondWithError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
			return
		}

		u, err := a.users.GetUser(r.Context(), id)
		if err != nil {
			a.logger.Debug("authenticated user not found", "user_id", id, "err", err)
			respondWithError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser extracts the authenticated user from context
func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey).(*user.User)
	return u, ok && u != nil
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
