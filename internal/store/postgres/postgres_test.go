package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/database"
	"repdayAPI/internal/logger"
	"repdayAPI/internal/nudge"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

// setupStore connects to TEST_DATABASE_URL, migrates it and empties every
// table. Tests are skipped when no database is configured.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = database.NewRunner(pool, database.Migrations(), logger.Discard()).Apply(ctx)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE users, challenges, challenge_participants, daily_progress, nudges, challenge_messages, device_tokens CASCADE`)
	require.NoError(t, err)

	return New(pool)
}

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (*user.User, *user.User, *challenge.Challenge) {
	t.Helper()
	ctx := context.Background()

	owner, err := s.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: 1001, FirstName: "Owner"}, now)
	require.NoError(t, err)
	member, err := s.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: 1002, FirstName: "Member"}, now)
	require.NoError(t, err)

	goal := 10
	c, err := s.CreateChallenge(ctx, &challenge.Challenge{
		Title:        "Pushups",
		GoalType:     challenge.GoalQuantitative,
		DailyGoal:    &goal,
		Unit:         "reps",
		DurationDays: 30,
		StartDate:    calendar.Date(2026, 7, 1),
		InviteCode:   uuid.NewString()[:11],
		CreatorID:    owner.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	_, created, err := s.AddParticipant(ctx, c.ID, member.ID, challenge.RoleMember, now)
	require.NoError(t, err)
	require.True(t, created)
	return owner, member, c
}

func TestPostgresChallengeRoundTrip(t *testing.T) {
	s := setupStore(t)
	owner, _, c := seed(t, s)
	ctx := context.Background()

	assert.Equal(t, calendar.Date(2026, 7, 30), c.EndDate)

	got, err := s.GetChallengeByInviteCode(ctx, c.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	p, err := s.GetParticipant(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.RoleOwner, p.Role)

	ps, err := s.ListParticipants(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, owner.ID, ps[0].UserID)
}

func TestPostgresJoinIsIdempotent(t *testing.T) {
	s := setupStore(t)
	_, member, c := seed(t, s)

	_, created, err := s.AddParticipant(context.Background(), c.ID, member.ID, challenge.RoleMember, now)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPostgresConcurrentProgressWrites(t *testing.T) {
	s := setupStore(t)
	_, member, c := seed(t, s)
	ctx := context.Background()
	key := store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 2)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delta := 1
			_, err := s.UpsertProgress(ctx, key, now, func(prev progress.Record) progress.Record {
				return progress.Apply(prev, progress.Update{Delta: &delta}, c.DailyGoal)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	row, err := s.GetProgress(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 20, row.Value)
	assert.True(t, row.Completed)
}

func TestPostgresConcurrentNudgesSingleWinner(t *testing.T) {
	s := setupStore(t)
	owner, member, c := seed(t, s)
	ctx := context.Background()
	at := now.Add(3 * time.Hour)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendNudge(ctx, store.NudgeAttempt{
				ChallengeID: c.ID, FromUserID: owner.ID, ToUserID: member.ID,
				Today: calendar.Date(2026, 7, 1), Now: at,
			}, func(snap nudge.Snapshot) error { return nudge.Evaluate(snap, at) })
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPostgresRemoveParticipantCascades(t *testing.T) {
	s := setupStore(t)
	owner, member, c := seed(t, s)
	ctx := context.Background()

	_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 1)}, now,
		func(progress.Record) progress.Record { return progress.Record{Value: 5} })
	require.NoError(t, err)
	_, err = s.AppendNudge(ctx, store.NudgeAttempt{
		ChallengeID: c.ID, FromUserID: owner.ID, ToUserID: member.ID, Today: calendar.Date(2026, 7, 1), Now: now.Add(2 * time.Hour),
	}, func(nudge.Snapshot) error { return nil })
	require.NoError(t, err)

	require.NoError(t, s.RemoveParticipant(ctx, c.ID, member.ID))

	rows, err := s.ListProgress(ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	last, err := s.LastNudgesFrom(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestPostgresDeleteChallengeCascades(t *testing.T) {
	s := setupStore(t)
	owner, _, c := seed(t, s)
	ctx := context.Background()

	_, err := s.CreateMessage(ctx, challenge.Message{ChallengeID: c.ID, UserID: owner.ID, Text: "hi", CreatedAt: now})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChallenge(ctx, c.ID))

	_, err = s.GetChallenge(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	msgs, err := s.ListMessages(ctx, c.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, s.DeleteChallenge(ctx, c.ID), store.ErrNotFound)
}

func TestPostgresLeaderboardTotals(t *testing.T) {
	s := setupStore(t)
	owner, member, c := seed(t, s)
	ctx := context.Background()

	for i, v := range []int{12, 3} {
		_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 1+i)}, now,
			func(progress.Record) progress.Record { return progress.Record{Value: v, Completed: v >= 10} })
		require.NoError(t, err)
	}

	entries, err := s.LeaderboardTotals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, owner.ID, entries[0].UserID)
	assert.Zero(t, entries[0].TotalValue)
	assert.Equal(t, 15, entries[1].TotalValue)
	assert.Equal(t, 1, entries[1].CompletedDays)
}

func TestPostgresConcurrentStreakRefresh(t *testing.T) {
	s := setupStore(t)
	_, member, c := seed(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for day := 1; day <= 5; day++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, day)}, now,
				func(progress.Record) progress.Record { return progress.Record{Value: 10, Completed: true} })
			assert.NoError(t, err)
			_, _, err = s.RefreshStreak(ctx, c.ID, member.ID, func(rows []challenge.DailyProgress) (int, int) {
				return len(rows), len(rows)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetParticipant(ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StreakCurrent)
	assert.Equal(t, 5, p.StreakBest)
}
