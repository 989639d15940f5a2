package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/cache"
	"repdayAPI/internal/invite"
	"repdayAPI/internal/notification"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

const (
	maxTitleLength    = 100
	maxUnitLength     = 64
	maxDurationDays   = 3650
	inviteCodeRetries = 5
)

// NudgeDispatcher hands a nudge to asynchronous delivery.
type NudgeDispatcher interface {
	Dispatch(msg notification.NudgeMessage)
}

type ChallengeService struct {
	db          store.Store
	access      auth.Elevator
	dispatcher  NudgeDispatcher
	cache       cache.LeaderboardCache
	now         func() time.Time
	loc         *time.Location
	botUsername string
	logger      *log.Logger
}

type ChallengeOption func(*ChallengeService)

func WithClock(now func() time.Time) ChallengeOption {
	return func(s *ChallengeService) { s.now = now }
}

// WithLocation sets the timezone that defines "today".
func WithLocation(loc *time.Location) ChallengeOption {
	return func(s *ChallengeService) { s.loc = loc }
}

func WithLeaderboardCache(c cache.LeaderboardCache) ChallengeOption {
	return func(s *ChallengeService) { s.cache = c }
}

func WithBotUsername(name string) ChallengeOption {
	return func(s *ChallengeService) { s.botUsername = name }
}

func WithLogger(l *log.Logger) ChallengeOption {
	return func(s *ChallengeService) { s.logger = l }
}

func NewChallengeService(db store.Store, access auth.Elevator, dispatcher NudgeDispatcher, opts ...ChallengeOption) *ChallengeService {
	s := &ChallengeService{
		db:         db,
		access:     access,
		dispatcher: dispatcher,
		cache:      cache.NopLeaderboardCache{},
		now:        time.Now,
		loc:        time.UTC,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChallengeService) today() time.Time {
	return calendar.Today(s.now(), s.loc)
}

func (s *ChallengeService) loadChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := s.db.GetChallenge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	return c, nil
}

// findParticipant returns nil without error when userID is not a member.
func (s *ChallengeService) findParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	p, err := s.db.GetParticipant(ctx, challengeID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	return p, nil
}

// RequireParticipant loads the challenge and fails unless userID belongs to it.
func (s *ChallengeService) RequireParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Challenge, *challenge.Participant, error) {
	c, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.findParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrNotParticipant
	}
	return c, p, nil
}

// readAccess admits participants and elevated viewers. The participant is
// nil for an elevated non-member.
func (s *ChallengeService) readAccess(ctx context.Context, viewer *user.User, challengeID uuid.UUID) (*challenge.Challenge, *challenge.Participant, error) {
	c, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.findParticipant(ctx, challengeID, viewer.ID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil && !s.access.IsElevated(viewer) {
		return nil, nil, ErrNotParticipant
	}
	return c, p, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context, viewer *user.User) ([]challenge.ChallengeShort, error) {
	mine, err := s.db.ListChallengesForUser(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	member := make(map[uuid.UUID]bool, len(mine))
	for _, c := range mine {
		member[c.ID] = true
	}

	list := mine
	if s.access.IsElevated(viewer) {
		if list, err = s.db.ListAllChallenges(ctx); err != nil {
			return nil, fmt.Errorf("failed to list challenges: %w", err)
		}
	}

	today := s.today()
	out := make([]challenge.ChallengeShort, 0, len(list))
	for i := range list {
		c := &list[i]
		short := toShort(c)
		if member[c.ID] {
			if err := s.fillPersonal(ctx, &short, c, viewer.ID, today); err != nil {
				return nil, err
			}
		}
		out = append(out, short)
	}
	return out, nil
}

func (s *ChallengeService) fillPersonal(ctx context.Context, short *challenge.ChallengeShort, c *challenge.Challenge, userID uuid.UUID, today time.Time) error {
	value, completed := 0, false
	row, err := s.db.GetProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: userID, Date: today})
	switch {
	case err == nil:
		value, completed = row.Value, row.Completed
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to load today's progress: %w", err)
	}

	days, err := s.db.CountCompletedDays(ctx, c.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to count completed days: %w", err)
	}

	percent := progress.Percent(value, c.DailyGoal, completed)
	short.TodayProgressValue = &value
	short.TodayProgressPercent = &percent
	short.DaysCompleted = &days
	return nil
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, viewer *user.User, req challenge.CreateChallengeRequest) (*challenge.ChallengeDetail, error) {
	c, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	c.CreatorID = viewer.ID
	c.CreatedAt = now
	c.UpdatedAt = now

	var created *challenge.Challenge
	for attempt := 0; attempt < inviteCodeRetries; attempt++ {
		if c.InviteCode, err = invite.NewCode(); err != nil {
			return nil, err
		}
		created, err = s.db.CreateChallenge(ctx, c)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.logger.Info("challenge created", "challenge_id", created.ID, "creator_id", viewer.ID, "goal_type", created.GoalType)
	return s.GetChallenge(ctx, viewer, created.ID)
}

func (s *ChallengeService) validateCreate(req challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, validation("invalid_title", fmt.Sprintf("title must be 1 to %d characters", maxTitleLength))
	}
	if !req.GoalType.Valid() {
		return nil, validation("invalid_goal_type", "goal_type must be quantitative, time or checkin")
	}
	unit := strings.TrimSpace(req.Unit)
	if utf8.RuneCountInString(unit) > maxUnitLength {
		return nil, validation("invalid_unit", fmt.Sprintf("unit must be at most %d characters", maxUnitLength))
	}
	if req.DurationDays < 1 || req.DurationDays > maxDurationDays {
		return nil, validation("invalid_duration", fmt.Sprintf("duration_days must be between 1 and %d", maxDurationDays))
	}

	start := s.today()
	if req.StartDate != "" {
		d, err := calendar.Parse(req.StartDate)
		if err != nil {
			return nil, validation("invalid_date", "start_date must be YYYY-MM-DD")
		}
		start = d
	}

	var goal *int
	if req.GoalType.CountBased() && req.DailyGoal != nil {
		if *req.DailyGoal < 1 || *req.DailyGoal > progress.MaxValue {
			return nil, validation("invalid_daily_goal", fmt.Sprintf("daily_goal must be between 1 and %d", progress.MaxValue))
		}
		g := *req.DailyGoal
		goal = &g
	}

	var description *string
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			description = &d
		}
	}

	return &challenge.Challenge{
		Title:        title,
		Description:  description,
		GoalType:     req.GoalType,
		DailyGoal:    goal,
		Unit:         unit,
		DurationDays: req.DurationDays,
		StartDate:    start,
		EndDate:      calendar.EndDate(start, req.DurationDays),
		IsPublic:     req.IsPublic != nil && *req.IsPublic,
	}, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, viewer *user.User, id uuid.UUID) (*challenge.ChallengeDetail, error) {
	c, self, err := s.readAccess(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	participants, err := s.db.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	today := s.today()
	rows, err := s.db.ListProgressForDate(ctx, id, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's progress: %w", err)
	}
	todayByUser := make(map[uuid.UUID]challenge.DailyProgress, len(rows))
	for _, r := range rows {
		todayByUser[r.UserID] = r
	}

	lastNudges := map[uuid.UUID]time.Time{}
	if self != nil {
		if lastNudges, err = s.db.LastNudgesFrom(ctx, id, viewer.ID); err != nil {
			return nil, fmt.Errorf("failed to load nudges: %w", err)
		}
	}

	detail := &challenge.ChallengeDetail{
		ChallengeShort: toShort(c),
		IsPublic:       c.IsPublic,
		CreatorID:      c.CreatorID,
		IsOwner:        c.CreatorID == viewer.ID,
		IsParticipant:  self != nil,
		Participants:   make([]challenge.ParticipantView, 0, len(participants)),
	}
	if self != nil {
		code := c.InviteCode
		detail.InviteCode = &code
		if err := s.fillPersonal(ctx, &detail.ChallengeShort, c, viewer.ID, today); err != nil {
			return nil, err
		}
	}

	for _, p := range participants {
		row := todayByUser[p.UserID]
		view := challenge.ParticipantView{
			ID:             p.UserID,
			DisplayName:    p.DisplayName,
			Role:           p.Role,
			TodayValue:     row.Value,
			TodayCompleted: row.Completed,
			StreakCurrent:  p.StreakCurrent,
			StreakBest:     p.StreakBest,
		}
		if at, ok := lastNudges[p.UserID]; ok {
			local := at.In(s.loc)
			view.LastNudgeAt = &local
		}
		detail.Participants = append(detail.Participants, view)
	}
	return detail, nil
}

// ResolveInvite returns the public summary of the challenge behind code.
func (s *ChallengeService) ResolveInvite(ctx context.Context, code string) (*challenge.ChallengeShort, error) {
	c, err := s.db.GetChallengeByInviteCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invite: %w", err)
	}
	short := toShort(c)
	return &short, nil
}

// Join adds viewer as a member. Joining twice is a no-op.
func (s *ChallengeService) Join(ctx context.Context, viewer *user.User, id uuid.UUID) (*challenge.ChallengeDetail, error) {
	if _, err := s.loadChallenge(ctx, id); err != nil {
		return nil, err
	}
	_, created, err := s.db.AddParticipant(ctx, id, viewer.ID, challenge.RoleMember, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}
	if created {
		s.cache.Invalidate(ctx, id)
		s.logger.Info("participant joined", "challenge_id", id, "user_id", viewer.ID)
	}
	return s.GetChallenge(ctx, viewer, id)
}

func (s *ChallengeService) JoinByInviteCode(ctx context.Context, viewer *user.User, code string) (*challenge.ChallengeDetail, error) {
	short, err := s.ResolveInvite(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Join(ctx, viewer, short.ID)
}

// RemoveParticipant lets the owner drop a member along with the member's
// progress and nudges.
func (s *ChallengeService) RemoveParticipant(ctx context.Context, viewer *user.User, challengeID, target uuid.UUID) error {
	c, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if target == viewer.ID {
		return ErrCannotRemoveSelf
	}
	if c.CreatorID != viewer.ID {
		return ErrNotOwner
	}

	err = s.db.RemoveParticipant(ctx, challengeID, target)
	if errors.Is(err, store.ErrNotFound) {
		return ErrParticipantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	s.cache.Invalidate(ctx, challengeID)
	s.logger.Info("participant removed", "challenge_id", challengeID, "user_id", target, "by", viewer.ID)
	return nil
}

func (s *ChallengeService) DeleteChallenge(ctx context.Context, viewer *user.User, id uuid.UUID) error {
	c, err := s.loadChallenge(ctx, id)
	if err != nil {
		return err
	}
	if c.CreatorID != viewer.ID {
		return ErrNotOwner
	}

	err = s.db.DeleteChallenge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChallengeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info("challenge deleted", "challenge_id", id, "by", viewer.ID)
	return nil
}

// InviteQR renders the mini app deep link for the challenge as a QR code.
func (s *ChallengeService) InviteQR(ctx context.Context, viewer *user.User, id uuid.UUID) (*challenge.InviteQRResponse, error) {
	c, _, err := s.RequireParticipant(ctx, id, viewer.ID)
	if err != nil {
		return nil, err
	}
	if s.botUsername == "" {
		return nil, ErrInviteLinkUnavailable
	}

	link := invite.DeepLink(s.botUsername, c.InviteCode)
	qr, err := invite.QRCodeBase64(link)
	if err != nil {
		return nil, err
	}
	return &challenge.InviteQRResponse{InviteCode: c.InviteCode, Link: link, QRCodeBase64: qr}, nil
}

func toShort(c *challenge.Challenge) challenge.ChallengeShort {
	return challenge.ChallengeShort{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		GoalType:     c.GoalType,
		Unit:         c.Unit,
		DailyGoal:    c.DailyGoal,
		DurationDays: c.DurationDays,
		StartDate:    calendar.Format(c.StartDate),
		EndDate:      calendar.Format(c.EndDate),
	}
}
