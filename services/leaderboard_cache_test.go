package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/logger"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

// generationCache keeps entries per generation the way the redis cache does.
type generationCache struct {
	mu      sync.Mutex
	gens    map[uuid.UUID]int64
	entries map[uuid.UUID]map[int64]leaderboard.Boards
}

func newGenerationCache() *generationCache {
	return &generationCache{
		gens:    map[uuid.UUID]int64{},
		entries: map[uuid.UUID]map[int64]leaderboard.Boards{},
	}
}

func (c *generationCache) Get(_ context.Context, id uuid.UUID) (*leaderboard.Boards, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[id]
	b, ok := c.entries[id][gen]
	if !ok {
		return nil, gen, false
	}
	return &b, gen, true
}

func (c *generationCache) Set(_ context.Context, id uuid.UUID, gen int64, boards leaderboard.Boards) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[id] == nil {
		c.entries[id] = map[int64]leaderboard.Boards{}
	}
	c.entries[id][gen] = boards
}

func (c *generationCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
}

// interleavingStore runs afterTotals once, right after leaderboard totals are
// read and before the caller caches them.
type interleavingStore struct {
	store.Store
	afterTotals func()
}

func (s *interleavingStore) LeaderboardTotals(ctx context.Context, challengeID uuid.UUID) ([]leaderboard.Entry, error) {
	entries, err := s.Store.LeaderboardTotals(ctx, challengeID)
	if hook := s.afterTotals; hook != nil {
		s.afterTotals = nil
		hook()
	}
	return entries, err
}

func boardItem(t *testing.T, items []challenge.LeaderboardItem, id uuid.UUID) challenge.LeaderboardItem {
	t.Helper()
	for _, it := range items {
		if it.UserID == id {
			return it
		}
	}
	require.Failf(t, "missing leaderboard entry", "user %s", id)
	return challenge.LeaderboardItem{}
}

func TestLeaderboardWriteDuringComputeIsNotCached(t *testing.T) {
	f := newFixture(t)
	d := f.joined(t)
	ctx := context.Background()

	db := &interleavingStore{Store: f.store}
	svc := NewChallengeService(db, auth.NewSuperadminList([]int64{superadminTGID}), f.dispatcher,
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithLeaderboardCache(newGenerationCache()),
		WithLogger(logger.Discard()),
	)
	db.afterTotals = func() {
		_, err := svc.SubmitProgress(ctx, f.member, d.ID, challenge.ProgressUpdateRequest{SetValue: intp(7)})
		require.NoError(t, err)
	}

	stale, err := svc.GetStats(ctx, f.owner, d.ID)
	require.NoError(t, err)
	assert.Zero(t, boardItem(t, stale.LeaderboardByValue, f.member.ID).TotalValue)

	fresh, err := svc.GetStats(ctx, f.owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, boardItem(t, fresh.LeaderboardByValue, f.member.ID).TotalValue)
}

func TestUpdateMeInvalidatesLeaderboards(t *testing.T) {
	f := newFixture(t)
	d := f.joined(t)
	ctx := context.Background()

	lc := newGenerationCache()
	access := auth.NewSuperadminList([]int64{superadminTGID})
	svc := NewChallengeService(f.store, access, f.dispatcher,
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithLeaderboardCache(lc),
		WithLogger(logger.Discard()),
	)
	users := NewUserService(f.store, access, f.clock.Now, WithUserLeaderboardCache(lc), WithUserLogger(logger.Discard()))

	st, err := svc.GetStats(ctx, f.owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Member", boardItem(t, st.LeaderboardByDays, f.member.ID).DisplayName)
	_, _, cached := lc.Get(ctx, d.ID)
	require.True(t, cached)

	name := "Iron Member"
	_, err = users.UpdateMe(ctx, f.member, user.UpdateProfileRequest{DisplayName: &name})
	require.NoError(t, err)

	st, err = svc.GetStats(ctx, f.owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Iron Member", boardItem(t, st.LeaderboardByDays, f.member.ID).DisplayName)
}
