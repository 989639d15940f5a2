package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"repdayAPI/handlers"
	"repdayAPI/internal/auth"
	"repdayAPI/internal/cache"
	"repdayAPI/internal/config"
	"repdayAPI/internal/database"
	"repdayAPI/internal/logger"
	"repdayAPI/internal/metrics"
	"repdayAPI/internal/notification"
	"repdayAPI/internal/store"
	"repdayAPI/internal/store/memory"
	"repdayAPI/internal/store/postgres"
	"repdayAPI/middleware"
	"repdayAPI/services"
)

const (
	dispatchWorkers   = 4
	dispatchQueueSize = 256
)

// app owns every long-lived dependency of the server.
type app struct {
	store       store.Store
	rdb         *redis.Client
	dispatcher  *notification.Dispatcher
	rateLimiter *middleware.RateLimiter
	handler     http.Handler
	logger      *log.Logger
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	return logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
}

func newApp(ctx context.Context, cfg *config.Config, lg *log.Logger) (a *app, err error) {
	a = &app{logger: lg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.store, err = openStore(ctx, cfg, lg); err != nil {
		return nil, err
	}

	var leaderboards cache.LeaderboardCache = cache.NopLeaderboardCache{}
	if cfg.RedisURL != "" {
		if a.rdb, err = cache.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		leaderboards = cache.NewRedisLeaderboardCache(a.rdb, cache.DefaultTTL, lg.WithPrefix("cache"))
		lg.Info("leaderboard cache enabled")
	}

	notifiers := notification.MultiNotifier{
		notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.BotUsername),
	}
	if cfg.FCMCredentials != "" || cfg.FCMCredentialsFP != "" {
		fcm, err := notification.NewFCMNotifier(ctx, cfg.FCMCredentials, cfg.FCMCredentialsFP, a.store, lg.WithPrefix("fcm"))
		if err != nil {
			lg.Warn("could not initialize FCM", "err", err)
		} else {
			notifiers = append(notifiers, fcm)
			lg.Info("FCM push provider initialized")
		}
	}
	a.dispatcher = notification.NewDispatcher(notifiers, lg.WithPrefix("notify"), dispatchWorkers, dispatchQueueSize)

	if err = metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if err = middleware.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	access := auth.NewSuperadminList(cfg.SuperadminTGIDs)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, time.Now)

	challenges := services.NewChallengeService(a.store, access, a.dispatcher,
		services.WithLocation(cfg.Location),
		services.WithLeaderboardCache(leaderboards),
		services.WithBotUsername(cfg.Telegram.BotUsername),
		services.WithLogger(lg.WithPrefix("challenges")),
	)
	users := services.NewUserService(a.store, access, time.Now,
		services.WithUserLeaderboardCache(leaderboards),
		services.WithUserLogger(lg.WithPrefix("users")),
	)

	var verifier auth.InitDataVerifier = auth.SignedInitDataVerifier{
		BotToken: cfg.Telegram.BotToken,
		MaxAge:   auth.InitDataMaxAge,
		Now:      time.Now,
	}
	unsigned := !cfg.TelegramEnabled()
	if unsigned {
		verifier = auth.UnverifiedInitDataParser{}
		lg.Warn("TELEGRAM_BOT_TOKEN is not set: init data signatures are not verified")
	}
	authService := services.NewAuthService(a.store, verifier, issuer, users, challenges, unsigned, lg.WithPrefix("auth"))

	var strategy auth.Strategy = auth.NewTokenStrategy(issuer)
	if cfg.AuthMode == config.AuthModeDev {
		dev, err := services.EnsureDevUser(ctx, a.store)
		if err != nil {
			return nil, err
		}
		strategy = auth.FixedDevUserStrategy{UserID: dev.ID}
		lg.Warn("AUTH_MODE=dev: every request acts as the dev user", "user_id", dev.ID)
	}

	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	a.handler = handlers.NewRouter(handlers.RouterConfig{
		Challenges:    challenges,
		Users:         users,
		Auth:          authService,
		Authenticator: middleware.NewAuthenticator(strategy, a.store, lg.WithPrefix("auth")),
		RateLimiter:   a.rateLimiter,
		Ping:          a.store.Ping,
		Metrics:       promhttp.Handler(),
		MetricsUser:   cfg.MetricsUser,
		MetricsPass:   cfg.MetricsPass,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        lg.WithPrefix("http"),
	})
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, lg *log.Logger) (store.Store, error) {
	if cfg.Storage == config.StorageMemory {
		lg.Warn("STORAGE=memory: data is lost on restart")
		return memory.New(), nil
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	lg.Info("successfully connected to database")
	return postgres.New(pool), nil
}

// Close drains pending deliveries before releasing connections.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("failed to close redis", "err", err)
		}
	}
	if a.store != nil {
		a.logger.Info("closing database connection pool")
		a.store.Close()
	}
}
