package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"repdayAPI/middleware"
	"repdayAPI/services"
)

type RouterConfig struct {
	Challenges *services.ChallengeService
	Users      *services.UserService
	Auth       *services.AuthService

	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter

	// Ping reports storage health for /health.
	Ping func(ctx context.Context) error

	// Metrics is served at /metrics behind basic auth. Nil disables the route.
	Metrics     http.Handler
	MetricsUser string
	MetricsPass string

	WebhookSecret string
	CORSOrigins   []string
	Logger        *log.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	challengeHandler := NewChallengeHandler(cfg.Challenges, cfg.Logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Logger)
	webhookHandler := NewWebhookHandler(cfg.Users, cfg.WebhookSecret, cfg.Logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "not_found", "route not found")
	})

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}
	r.Use(middleware.MonitorMiddleware)

	if cfg.Metrics != nil {
		r.Handle("/metrics", middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPass)(cfg.Metrics)).Methods("GET")
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := cfg.Ping(ctx); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "repday-api"})
	}).Methods("GET")

	r.HandleFunc("/telegram/webhook", webhookHandler.HandleTelegramWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/telegram", authHandler.LoginTelegram).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(cfg.Authenticator.Middleware)

	protected.HandleFunc("/me", userHandler.GetMe).Methods("GET")
	protected.HandleFunc("/me", userHandler.UpdateMe).Methods("PATCH")
	protected.HandleFunc("/me/devices", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/invite/{code}", challengeHandler.ResolveInvite).Methods("GET")
	protected.HandleFunc("/challenges/invite/{code}/join", challengeHandler.JoinByInviteCode).Methods("POST")
	protected.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{id}", challengeHandler.DeleteChallenge).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/join", challengeHandler.Join).Methods("POST")
	protected.HandleFunc("/challenges/{id}/progress", challengeHandler.SubmitProgress).Methods("POST")
	protected.HandleFunc("/challenges/{id}/stats", challengeHandler.GetStats).Methods("GET")
	protected.HandleFunc("/challenges/{id}/nudge", challengeHandler.SendNudge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/participants/{userID}", challengeHandler.RemoveParticipant).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/messages", challengeHandler.ListMessages).Methods("GET")
	protected.HandleFunc("/challenges/{id}/messages", challengeHandler.PostMessage).Methods("POST")
	protected.HandleFunc("/challenges/{id}/invite-qr", challengeHandler.InviteQR).Methods("GET")

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(origins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "Retry-After"}),
	)
	return corsHandler(r)
}
