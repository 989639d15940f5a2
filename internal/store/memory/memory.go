// Package memory is an in-process store.Store used for local development
// and service tests. A single mutex serializes every operation, which gives
// the same atomicity the postgres store gets from transactions and locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/nudge"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

type progressKey struct {
	challengeID uuid.UUID
	userID      uuid.UUID
	date        time.Time
}

type Store struct {
	mu sync.Mutex

	users      map[uuid.UUID]*user.User
	byTelegram map[int64]uuid.UUID
	devices    map[string]user.DeviceToken

	challenges   map[uuid.UUID]*challenge.Challenge
	participants []*challenge.Participant // join order
	progress     map[progressKey]*challenge.DailyProgress
	nudges       []*challenge.Nudge
	messages     []*challenge.Message
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]*user.User),
		byTelegram: make(map[int64]uuid.UUID),
		devices:    make(map[string]user.DeviceToken),
		challenges: make(map[uuid.UUID]*challenge.Challenge),
		progress:   make(map[progressKey]*challenge.DailyProgress),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

// Users

func (s *Store) UpsertTelegramUser(ctx context.Context, id user.TelegramIdentity, now time.Time) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uid, ok := s.byTelegram[id.TelegramID]; ok {
		u := s.users[uid]
		u.Username = id.Username
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}

	u := &user.User{
		ID:          uuid.New(),
		TelegramID:  id.TelegramID,
		Username:    id.Username,
		DisplayName: id.DisplayName(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[u.ID] = u
	s.byTelegram[u.TelegramID] = u.ID
	cp := *u
	return &cp, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string, now time.Time) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.DisplayName = name
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (s *Store) SetBotChatActive(ctx context.Context, id uuid.UUID, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.BotChatActive = active
	u.UpdatedAt = now
	return nil
}

func (s *Store) AddDeviceToken(ctx context.Context, tok user.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[tok.UserID]; !ok {
		return store.ErrNotFound
	}
	s.devices[tok.Token] = tok
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]user.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []user.DeviceToken
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Challenges

func (s *Store) CreateChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.challenges {
		if existing.InviteCode == c.InviteCode {
			return nil, store.ErrConflict
		}
	}
	if _, ok := s.users[c.CreatorID]; !ok {
		return nil, store.ErrNotFound
	}

	cp := *c
	cp.ID = uuid.New()
	cp.EndDate = calendar.EndDate(cp.StartDate, cp.DurationDays)
	s.challenges[cp.ID] = &cp
	s.participants = append(s.participants, &challenge.Participant{
		ID:          uuid.New(),
		ChallengeID: cp.ID,
		UserID:      cp.CreatorID,
		Role:        challenge.RoleOwner,
		JoinedAt:    cp.CreatedAt,
	})

	out := cp
	return &out, nil
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetChallengeByInviteCode(ctx context.Context, code string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.challenges {
		if c.InviteCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListChallengesForUser(ctx context.Context, userID uuid.UUID) ([]challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []challenge.Challenge{}
	for _, p := range s.participants {
		if p.UserID == userID {
			out = append(out, *s.challenges[p.ChallengeID])
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		out = append(out, *c)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(cs []challenge.Challenge) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) })
}

func (s *Store) DeleteChallenge(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.challenges, id)

	s.participants = filter(s.participants, func(p *challenge.Participant) bool { return p.ChallengeID != id })
	s.nudges = filter(s.nudges, func(n *challenge.Nudge) bool { return n.ChallengeID != id })
	s.messages = filter(s.messages, func(m *challenge.Message) bool { return m.ChallengeID != id })
	for k := range s.progress {
		if k.challengeID == id {
			delete(s.progress, k)
		}
	}
	return nil
}

// Participants

func (s *Store) AddParticipant(ctx context.Context, challengeID, userID uuid.UUID, role challenge.Role, now time.Time) (*challenge.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[challengeID]; !ok {
		return nil, false, store.ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return nil, false, store.ErrNotFound
	}
	if p := s.findParticipant(challengeID, userID); p != nil {
		return s.withName(p), false, nil
	}

	p := &challenge.Participant{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    now,
	}
	s.participants = append(s.participants, p)
	return s.withName(p), true, nil
}

func (s *Store) GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findParticipant(challengeID, userID)
	if p == nil {
		return nil, store.ErrNotFound
	}
	return s.withName(p), nil
}

func (s *Store) ListParticipants(ctx context.Context, challengeID uuid.UUID) ([]challenge.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []challenge.Participant{}
	for _, p := range s.participants {
		if p.ChallengeID == challengeID {
			out = append(out, *s.withName(p))
		}
	}
	return out, nil
}

func (s *Store) RemoveParticipant(ctx context.Context, challengeID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findParticipant(challengeID, userID) == nil {
		return store.ErrNotFound
	}
	s.participants = filter(s.participants, func(p *challenge.Participant) bool {
		return p.ChallengeID != challengeID || p.UserID != userID
	})
	s.nudges = filter(s.nudges, func(n *challenge.Nudge) bool {
		return n.ChallengeID != challengeID || (n.FromUserID != userID && n.ToUserID != userID)
	})
	for k := range s.progress {
		if k.challengeID == challengeID && k.userID == userID {
			delete(s.progress, k)
		}
	}
	return nil
}

func (s *Store) RefreshStreak(ctx context.Context, challengeID, userID uuid.UUID, fn store.StreakFunc) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findParticipant(challengeID, userID)
	if p == nil {
		return 0, 0, store.ErrNotFound
	}
	rows := []challenge.DailyProgress{}
	for k, row := range s.progress {
		if k.challengeID == challengeID && k.userID == userID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	p.StreakCurrent, p.StreakBest = fn(rows)
	return p.StreakCurrent, p.StreakBest, nil
}

func (s *Store) findParticipant(challengeID, userID uuid.UUID) *challenge.Participant {
	for _, p := range s.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Store) withName(p *challenge.Participant) *challenge.Participant {
	cp := *p
	if u, ok := s.users[p.UserID]; ok {
		cp.DisplayName = u.DisplayName
	}
	return &cp
}

// Progress

func (s *Store) UpsertProgress(ctx context.Context, key store.ProgressKey, now time.Time, fn store.ApplyFunc) (*challenge.DailyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findParticipant(key.ChallengeID, key.UserID) == nil {
		return nil, store.ErrNotFound
	}

	k := toKey(key)
	row, ok := s.progress[k]
	if !ok {
		row = &challenge.DailyProgress{
			ID:          uuid.New(),
			ChallengeID: key.ChallengeID,
			UserID:      key.UserID,
			Date:        k.date,
		}
		s.progress[k] = row
	}

	next := fn(recordOf(row))
	row.Value = next.Value
	row.Completed = next.Completed
	row.UpdatedAt = now

	cp := *row
	return &cp, nil
}

func (s *Store) GetProgress(ctx context.Context, key store.ProgressKey) (*challenge.DailyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.progress[toKey(key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *Store) ListProgress(ctx context.Context, challengeID, userID uuid.UUID) ([]challenge.DailyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []challenge.DailyProgress{}
	for k, row := range s.progress {
		if k.challengeID == challengeID && k.userID == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListProgressForDate(ctx context.Context, challengeID uuid.UUID, date time.Time) ([]challenge.DailyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date = calendar.Normalize(date)
	out := []challenge.DailyProgress{}
	for k, row := range s.progress {
		if k.challengeID == challengeID && k.date.Equal(date) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *Store) CountCompletedDays(ctx context.Context, challengeID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, row := range s.progress {
		if k.challengeID == challengeID && k.userID == userID && row.Completed {
			n++
		}
	}
	return n, nil
}

func (s *Store) LeaderboardTotals(ctx context.Context, challengeID uuid.UUID) ([]leaderboard.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []leaderboard.Entry{}
	for _, p := range s.participants {
		if p.ChallengeID != challengeID {
			continue
		}
		e := leaderboard.Entry{UserID: p.UserID, DisplayName: s.withName(p).DisplayName}
		for k, row := range s.progress {
			if k.challengeID == challengeID && k.userID == p.UserID {
				e.TotalValue += row.Value
				if row.Completed {
					e.CompletedDays++
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Nudges

func (s *Store) AppendNudge(ctx context.Context, a store.NudgeAttempt, guard store.NudgeGuard) (*challenge.Nudge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := nudge.Snapshot{
		FromUserID:          a.FromUserID,
		ToUserID:            a.ToUserID,
		TargetIsParticipant: s.findParticipant(a.ChallengeID, a.ToUserID) != nil,
	}
	if row, ok := s.progress[progressKey{a.ChallengeID, a.ToUserID, calendar.Normalize(a.Today)}]; ok {
		snap.TargetCompletedToday = row.Completed
	}
	for k, row := range s.progress {
		if k.challengeID != a.ChallengeID || k.userID != a.ToUserID {
			continue
		}
		if snap.TargetLastProgressAt == nil || row.UpdatedAt.After(*snap.TargetLastProgressAt) {
			t := row.UpdatedAt
			snap.TargetLastProgressAt = &t
		}
	}
	for _, n := range s.nudges {
		if n.ChallengeID != a.ChallengeID || n.FromUserID != a.FromUserID || n.ToUserID != a.ToUserID {
			continue
		}
		if snap.LastNudgeAt == nil || n.CreatedAt.After(*snap.LastNudgeAt) {
			t := n.CreatedAt
			snap.LastNudgeAt = &t
		}
	}

	if err := guard(snap); err != nil {
		return nil, err
	}

	n := &challenge.Nudge{
		ID:          uuid.New(),
		ChallengeID: a.ChallengeID,
		FromUserID:  a.FromUserID,
		ToUserID:    a.ToUserID,
		CreatedAt:   a.Now,
	}
	s.nudges = append(s.nudges, n)
	cp := *n
	return &cp, nil
}

func (s *Store) LastNudgesFrom(ctx context.Context, challengeID, fromUserID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uuid.UUID]time.Time)
	for _, n := range s.nudges {
		if n.ChallengeID != challengeID || n.FromUserID != fromUserID {
			continue
		}
		if last, ok := out[n.ToUserID]; !ok || n.CreatedAt.After(last) {
			out[n.ToUserID] = n.CreatedAt
		}
	}
	return out, nil
}

// Messages

func (s *Store) CreateMessage(ctx context.Context, m challenge.Message) (*challenge.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[m.ChallengeID]; !ok {
		return nil, store.ErrNotFound
	}
	u, ok := s.users[m.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}

	m.ID = uuid.New()
	m.DisplayName = u.DisplayName
	s.messages = append(s.messages, &m)
	cp := m
	return &cp, nil
}

func (s *Store) ListMessages(ctx context.Context, challengeID uuid.UUID, limit int) ([]challenge.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []challenge.Message{}
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.ChallengeID != challengeID {
			continue
		}
		cp := *m
		if u, ok := s.users[m.UserID]; ok {
			cp.DisplayName = u.DisplayName
		}
		out = append(out, cp)
	}
	return out, nil
}

func toKey(k store.ProgressKey) progressKey {
	return progressKey{challengeID: k.ChallengeID, userID: k.UserID, date: calendar.Normalize(k.Date)}
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func recordOf(row *challenge.DailyProgress) progress.Record {
	return progress.Record{Value: row.Value, Completed: row.Completed}
}
