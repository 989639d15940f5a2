package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/nudge"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*Store, *user.User, *user.User, *challenge.Challenge) {
	t.Helper()
	ctx := context.Background()
	s := New()

	owner, err := s.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: 1, FirstName: "Owner"}, now)
	require.NoError(t, err)
	member, err := s.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: 2, FirstName: "Member"}, now)
	require.NoError(t, err)

	goal := 10
	c, err := s.CreateChallenge(ctx, &challenge.Challenge{
		Title:        "Pushups",
		GoalType:     challenge.GoalQuantitative,
		DailyGoal:    &goal,
		DurationDays: 30,
		StartDate:    calendar.Date(2026, 7, 1),
		InviteCode:   "abcdefghijk",
		CreatorID:    owner.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	_, _, err = s.AddParticipant(ctx, c.ID, member.ID, challenge.RoleMember, now)
	require.NoError(t, err)
	return s, owner, member, c
}

func TestCreateChallengeAddsOwner(t *testing.T) {
	s, owner, _, c := seed(t)

	p, err := s.GetParticipant(context.Background(), c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.RoleOwner, p.Role)
	assert.Equal(t, "Owner", p.DisplayName)
	assert.Equal(t, calendar.Date(2026, 7, 30), c.EndDate)
}

func TestCreateChallengeDuplicateInviteCode(t *testing.T) {
	s, owner, _, _ := seed(t)
	_, err := s.CreateChallenge(context.Background(), &challenge.Challenge{
		Title: "Other", DurationDays: 1, InviteCode: "abcdefghijk", CreatorID: owner.ID,
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpsertTelegramUserKeepsDisplayName(t *testing.T) {
	s, owner, _, _ := seed(t)
	ctx := context.Background()

	_, err := s.UpdateDisplayName(ctx, owner.ID, "Captain", now)
	require.NoError(t, err)

	handle := "cap"
	u, err := s.UpsertTelegramUser(ctx, user.TelegramIdentity{TelegramID: 1, Username: &handle, FirstName: "Owner"}, now)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, u.ID)
	assert.Equal(t, "Captain", u.DisplayName)
	assert.Equal(t, &handle, u.Username)
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	s, _, member, c := seed(t)
	ctx := context.Background()

	p, created, err := s.AddParticipant(ctx, c.ID, member.ID, challenge.RoleMember, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, now, p.JoinedAt)

	ps, err := s.ListParticipants(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

func TestUpsertProgressConcurrentDeltas(t *testing.T) {
	s, _, member, c := seed(t)
	ctx := context.Background()
	key := store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 2)}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
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
	assert.Equal(t, 50, row.Value)
	assert.True(t, row.Completed)
}

func TestUpsertProgressRequiresParticipant(t *testing.T) {
	s, _, _, c := seed(t)
	key := store.ProgressKey{ChallengeID: c.ID, UserID: uuid.New(), Date: calendar.Date(2026, 7, 2)}
	_, err := s.UpsertProgress(context.Background(), key, now, func(p progress.Record) progress.Record { return p })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRemoveParticipantCascades(t *testing.T) {
	s, owner, member, c := seed(t)
	ctx := context.Background()

	key := store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 1)}
	_, err := s.UpsertProgress(ctx, key, now, func(p progress.Record) progress.Record { return progress.Record{Value: 3} })
	require.NoError(t, err)
	_, err = s.AppendNudge(ctx, store.NudgeAttempt{
		ChallengeID: c.ID, FromUserID: owner.ID, ToUserID: member.ID, Today: key.Date, Now: now.Add(2 * time.Hour),
	}, func(nudge.Snapshot) error { return nil })
	require.NoError(t, err)

	require.NoError(t, s.RemoveParticipant(ctx, c.ID, member.ID))

	rows, err := s.ListProgress(ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	last, err := s.LastNudgesFrom(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, last)

	assert.ErrorIs(t, s.RemoveParticipant(ctx, c.ID, member.ID), store.ErrNotFound)
}

func TestAppendNudgeSnapshot(t *testing.T) {
	s, owner, member, c := seed(t)
	ctx := context.Background()
	today := calendar.Date(2026, 7, 1)

	_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: today}, now,
		func(progress.Record) progress.Record { return progress.Record{Value: 4} })
	require.NoError(t, err)

	var seen nudge.Snapshot
	_, err = s.AppendNudge(ctx, store.NudgeAttempt{
		ChallengeID: c.ID, FromUserID: owner.ID, ToUserID: member.ID, Today: today, Now: now.Add(2 * time.Hour),
	}, func(snap nudge.Snapshot) error {
		seen = snap
		return nil
	})
	require.NoError(t, err)

	assert.True(t, seen.TargetIsParticipant)
	assert.False(t, seen.TargetCompletedToday)
	require.NotNil(t, seen.TargetLastProgressAt)
	assert.Equal(t, now, *seen.TargetLastProgressAt)
	assert.Nil(t, seen.LastNudgeAt)
}

func TestAppendNudgeConcurrentSingleWinner(t *testing.T) {
	s, owner, member, c := seed(t)
	ctx := context.Background()
	at := now.Add(3 * time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendNudge(ctx, store.NudgeAttempt{
				ChallengeID: c.ID, FromUserID: owner.ID, ToUserID: member.ID, Today: calendar.Date(2026, 7, 1), Now: at,
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

func TestDeleteChallengeRemovesEverything(t *testing.T) {
	s, owner, member, c := seed(t)
	ctx := context.Background()

	_, err := s.CreateMessage(ctx, challenge.Message{ChallengeID: c.ID, UserID: owner.ID, Text: "go", CreatedAt: now})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChallenge(ctx, c.ID))

	_, err = s.GetChallenge(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetParticipant(ctx, c.ID, member.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	msgs, err := s.ListMessages(ctx, c.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListMessagesNewestFirstWithLimit(t *testing.T) {
	s, owner, _, c := seed(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.CreateMessage(ctx, challenge.Message{
			ChallengeID: c.ID, UserID: owner.ID, Text: string(rune('a' + i)), CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, c.ID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "e", msgs[0].Text)
	assert.Equal(t, "c", msgs[2].Text)
	assert.Equal(t, "Owner", msgs[0].DisplayName)
}

func TestLeaderboardTotalsIncludesZeroRows(t *testing.T) {
	s, owner, member, c := seed(t)
	ctx := context.Background()

	_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, 1)}, now,
		func(progress.Record) progress.Record { return progress.Record{Value: 12, Completed: true} })
	require.NoError(t, err)

	entries, err := s.LeaderboardTotals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, owner.ID, entries[0].UserID)
	assert.Equal(t, 0, entries[0].TotalValue)
	assert.Equal(t, 12, entries[1].TotalValue)
	assert.Equal(t, 1, entries[1].CompletedDays)
}

func TestRefreshStreakSeesRowsInDateOrder(t *testing.T) {
	s, _, member, c := seed(t)
	ctx := context.Background()

	for _, day := range []int{3, 1, 2} {
		_, err := s.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: member.ID, Date: calendar.Date(2026, 7, day)}, now,
			func(progress.Record) progress.Record { return progress.Record{Value: 10, Completed: true} })
		require.NoError(t, err)
	}

	var dates []time.Time
	current, best, err := s.RefreshStreak(ctx, c.ID, member.ID, func(rows []challenge.DailyProgress) (int, int) {
		for _, r := range rows {
			dates = append(dates, r.Date)
		}
		return len(rows), len(rows) + 1
	})
	require.NoError(t, err)
	assert.Equal(t, 3, current)
	assert.Equal(t, 4, best)
	assert.Equal(t, []time.Time{calendar.Date(2026, 7, 1), calendar.Date(2026, 7, 2), calendar.Date(2026, 7, 3)}, dates)

	p, err := s.GetParticipant(ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StreakCurrent)
	assert.Equal(t, 4, p.StreakBest)

	_, _, err = s.RefreshStreak(ctx, c.ID, uuid.New(), func([]challenge.DailyProgress) (int, int) { return 0, 0 })
	assert.ErrorIs(t, err, store.ErrNotFound)
}
