package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/metrics"
)

const (
	DefaultTTL = 60 * time.Second

	// generationTTL outlives any entry, so an expired generation counter can
	// never resurrect an entry written under the same number.
	generationTTL = 7 * 24 * time.Hour
)

// LeaderboardCache stores computed boards per challenge. Failures are logged
// and treated as misses.
//
// Entries are versioned by a per-challenge generation that Invalidate bumps.
// Get reports the generation it observed and Set writes under it, so boards
// computed before an invalidation are never served after it. A negative
// generation means the cache is unavailable and Set is skipped.
type LeaderboardCache interface {
	Get(ctx context.Context, challengeID uuid.UUID) (boards *leaderboard.Boards, gen int64, ok bool)
	Set(ctx context.Context, challengeID uuid.UUID, gen int64, boards leaderboard.Boards)
	Invalidate(ctx context.Context, challengeID uuid.UUID)
}

type NopLeaderboardCache struct{}

func (NopLeaderboardCache) Get(context.Context, uuid.UUID) (*leaderboard.Boards, int64, bool) {
	return nil, -1, false
}
func (NopLeaderboardCache) Set(context.Context, uuid.UUID, int64, leaderboard.Boards) {}
func (NopLeaderboardCache) Invalidate(context.Context, uuid.UUID)                     {}

type RedisLeaderboardCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisClient connects to redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedisLeaderboardCache(rdb *redis.Client, ttl time.Duration, logger *log.Logger) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{rdb: rdb, ttl: ttl, logger: logger}
}

func generationKey(challengeID uuid.UUID) string {
	return "repday:leaderboard:" + challengeID.String() + ":gen"
}

func leaderboardKey(challengeID uuid.UUID, gen int64) string {
	return fmt.Sprintf("repday:leaderboard:%s:%d", challengeID, gen)
}

func (c *RedisLeaderboardCache) generation(ctx context.Context, challengeID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(challengeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisLeaderboardCache) Get(ctx context.Context, challengeID uuid.UUID) (*leaderboard.Boards, int64, bool) {
	gen, err := c.generation(ctx, challengeID)
	if err != nil {
		c.logger.Warn("leaderboard generation read failed", "challenge_id", challengeID, "err", err)
		metrics.LeaderboardCacheLookups.WithLabelValues("miss").Inc()
		return nil, -1, false
	}

	raw, err := c.rdb.Get(ctx, leaderboardKey(challengeID, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("leaderboard cache read failed", "challenge_id", challengeID, "err", err)
		}
		metrics.LeaderboardCacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}

	var boards leaderboard.Boards
	if err := json.Unmarshal(raw, &boards); err != nil {
		c.logger.Warn("leaderboard cache entry corrupt", "challenge_id", challengeID, "err", err)
		metrics.LeaderboardCacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}
	metrics.LeaderboardCacheLookups.WithLabelValues("hit").Inc()
	return &boards, gen, true
}

func (c *RedisLeaderboardCache) Set(ctx context.Context, challengeID uuid.UUID, gen int64, boards leaderboard.Boards) {
	if gen < 0 {
		return
	}
	raw, err := json.Marshal(boards)
	if err != nil {
		c.logger.Warn("leaderboard cache encode failed", "challenge_id", challengeID, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, leaderboardKey(challengeID, gen), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("leaderboard cache write failed", "challenge_id", challengeID, "err", err)
	}
}

// Invalidate bumps the generation. Entries of older generations are left to
// expire.
func (c *RedisLeaderboardCache) Invalidate(ctx context.Context, challengeID uuid.UUID) {
	key := generationKey(challengeID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, generationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("leaderboard cache invalidate failed", "challenge_id", challengeID, "err", err)
	}
}
