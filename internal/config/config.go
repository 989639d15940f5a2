package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StorageKind string

const (
	StoragePostgres StorageKind = "postgres"
	StorageMemory   StorageKind = "memory"
)

type AuthMode string

const (
	AuthModeToken AuthMode = "token"
	AuthModeDev   AuthMode = "dev"
)

// DevJWTSecret signs tokens when AUTH_MODE=dev. Tokens are never checked in
// that mode.
const DevJWTSecret = "repday-dev-insecure-secret"

type TelegramConfig struct {
	BotToken      string
	BotUsername   string
	WebhookSecret string
}

type Config struct {
	Port        string
	DatabaseURL string
	Storage     StorageKind
	AuthMode    AuthMode
	JWTSecret   string
	TokenTTL    time.Duration

	Telegram         TelegramConfig
	SuperadminTGIDs  []int64
	Location         *time.Location
	RedisURL         string
	FCMCredentials   string
	FCMCredentialsFP string

	MetricsUser string
	MetricsPass string

	LogLevel string
	LogFile  string

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// Load reads .env (when present) and the process environment once.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:        get("PORT", "3333"),
		DatabaseURL: get("DATABASE_URL", ""),
		Storage:     StorageKind(get("STORAGE", string(StoragePostgres))),
		AuthMode:    AuthMode(get("AUTH_MODE", string(AuthModeToken))),
		JWTSecret:   get("JWT_SECRET", ""),
		TokenTTL:    30 * 24 * time.Hour,
		Telegram: TelegramConfig{
			BotToken:      get("TELEGRAM_BOT_TOKEN", ""),
			BotUsername:   strings.TrimPrefix(get("TELEGRAM_BOT_USERNAME", ""), "@"),
			WebhookSecret: get("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		RedisURL:         get("REDIS_URL", ""),
		FCMCredentials:   get("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialsFP: get("FCM_CREDENTIALS_FILE", ""),
		MetricsUser:      get("METRICS_USER", ""),
		MetricsPass:      get("METRICS_PASS", ""),
		LogLevel:         get("LOG_LEVEL", "info"),
		LogFile:          get("LOG_FILE", ""),
	}

	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE %q: want postgres or memory", cfg.Storage)
	}
	switch cfg.AuthMode {
	case AuthModeToken, AuthModeDev:
	default:
		return nil, fmt.Errorf("invalid AUTH_MODE %q: want token or dev", cfg.AuthMode)
	}

	if cfg.Storage == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required when STORAGE=postgres")
	}
	if cfg.AuthMode == AuthModeToken && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required when AUTH_MODE=token")
	}
	if cfg.AuthMode == AuthModeDev && cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}

	tz := get("APP_TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	ids, err := parseIDList(get("SUPERADMIN_TELEGRAM_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SUPERADMIN_TELEGRAM_IDS: %w", err)
	}
	cfg.SuperadminTGIDs = ids

	rps, err := strconv.ParseFloat(get("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", get("RATE_LIMIT_RPS", ""))
	}
	cfg.RateLimitRPS = rps

	burst, err := strconv.Atoi(get("RATE_LIMIT_BURST", "30"))
	if err != nil || burst <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", get("RATE_LIMIT_BURST", ""))
	}
	cfg.RateLimitBurst = burst

	for _, o := range strings.Split(get("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	return cfg, nil
}

// TelegramEnabled reports whether bot delivery and signature checks are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a telegram id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
