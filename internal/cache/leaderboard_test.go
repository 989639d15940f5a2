package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/logger"
)

func TestNopCacheAlwaysMisses(t *testing.T) {
	var c LeaderboardCache = NopLeaderboardCache{}
	id := uuid.New()

	c.Set(context.Background(), id, 0, leaderboard.Boards{})
	_, gen, ok := c.Get(context.Background(), id)
	assert.False(t, ok)
	assert.Negative(t, gen)
	c.Invalidate(context.Background(), id)
}

func newRedisCache(t *testing.T) *RedisLeaderboardCache {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	rdb, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewRedisLeaderboardCache(rdb, time.Minute, logger.Discard())
}

func sampleBoards() leaderboard.Boards {
	return leaderboard.Build([]leaderboard.Entry{
		{UserID: uuid.New(), DisplayName: "ann", TotalValue: 3, CompletedDays: 1},
		{UserID: uuid.New(), DisplayName: "bob", TotalValue: 9},
	})
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	id := uuid.New()
	boards := sampleBoards()

	_, gen, ok := c.Get(ctx, id)
	assert.False(t, ok)
	assert.Zero(t, gen)

	c.Set(ctx, id, gen, boards)
	got, _, ok := c.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, boards, *got)

	c.Invalidate(ctx, id)
	_, gen, ok = c.Get(ctx, id)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestRedisCacheDropsSetFromBeforeInvalidate(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	id := uuid.New()

	_, gen, ok := c.Get(ctx, id)
	require.False(t, ok)

	c.Invalidate(ctx, id)
	c.Set(ctx, id, gen, sampleBoards())

	_, _, ok = c.Get(ctx, id)
	assert.False(t, ok)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
