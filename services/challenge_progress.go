package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repdayAPI/internal/leaderboard"
	"repdayAPI/internal/metrics"
	"repdayAPI/internal/progress"
	"repdayAPI/internal/stats"
	"repdayAPI/internal/store"
	"repdayAPI/internal/streak"
	"repdayAPI/internal/types/calendar"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

// SubmitProgress applies one progress write for viewer on the given day
// (today when the request has no date).
func (s *ChallengeService) SubmitProgress(ctx context.Context, viewer *user.User, challengeID uuid.UUID, req challenge.ProgressUpdateRequest) (*challenge.ProgressResponse, error) {
	c, _, err := s.RequireParticipant(ctx, challengeID, viewer.ID)
	if err != nil {
		return nil, err
	}
	if req.Delta == nil && req.SetValue == nil && req.Completed == nil {
		return nil, validation("empty_update", "one of delta, set_value or completed is required")
	}
	for _, v := range []*int{req.Delta, req.SetValue} {
		if v != nil && (*v > progress.MaxValue || *v < -progress.MaxValue) {
			return nil, validation("invalid_value", fmt.Sprintf("delta and set_value must be between %d and %d", -progress.MaxValue, progress.MaxValue))
		}
	}

	today := s.today()
	day := today
	if req.Date != "" {
		if day, err = calendar.Parse(req.Date); err != nil {
			return nil, validation("invalid_date", "date must be YYYY-MM-DD")
		}
	}
	if day.After(today) {
		return nil, validation("future_date", "progress cannot be logged for a future date")
	}
	if !calendar.Within(day, c.StartDate, c.EndDate) {
		return nil, validation("date_out_of_range", "date is outside the challenge period")
	}

	update := progress.Update{Delta: req.Delta, SetValue: req.SetValue, Completed: req.Completed}
	row, err := s.db.UpsertProgress(ctx, store.ProgressKey{ChallengeID: c.ID, UserID: viewer.ID, Date: day}, s.now(),
		func(prev progress.Record) progress.Record {
			return progress.Apply(prev, update, c.DailyGoal)
		})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	metrics.ProgressWrites.Inc()
	s.cache.Invalidate(ctx, c.ID)

	resp := &challenge.ProgressResponse{
		Date:      calendar.Format(row.Date),
		Value:     row.Value,
		Completed: row.Completed,
		Percent:   progress.Percent(row.Value, c.DailyGoal, row.Completed),
		UpdatedAt: row.UpdatedAt,
	}

	current, best, err := s.refreshStreak(ctx, c.ID, viewer.ID, today)
	if err != nil {
		s.logger.Warn("failed to refresh streak", "challenge_id", c.ID, "user_id", viewer.ID, "err", err)
	} else {
		resp.StreakCurrent, resp.StreakBest = current, best
	}
	return resp, nil
}

func (s *ChallengeService) refreshStreak(ctx context.Context, challengeID, userID uuid.UUID, today time.Time) (int, int, error) {
	return s.db.RefreshStreak(ctx, challengeID, userID, func(rows []challenge.DailyProgress) (int, int) {
		var done []time.Time
		for _, r := range rows {
			if r.Completed {
				done = append(done, r.Date)
			}
		}
		return streak.Compute(done, today)
	})
}

// GetStats returns viewer's series over the elapsed days of the challenge
// and both leaderboards. An elevated viewer outside the challenge gets an
// empty series.
func (s *ChallengeService) GetStats(ctx context.Context, viewer *user.User, challengeID uuid.UUID) (*challenge.ChallengeStats, error) {
	c, self, err := s.readAccess(ctx, viewer, challengeID)
	if err != nil {
		return nil, err
	}

	out := &challenge.ChallengeStats{Points: []challenge.DayPoint{}}
	if self != nil {
		rows, err := s.db.ListProgress(ctx, c.ID, viewer.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load progress: %w", err)
		}
		series := stats.BuildSeries(c.StartDate, c.EndDate, s.today(), rows, c.DailyGoal)
		out.CompletedDays = series.CompletedDays
		out.MissedDays = series.MissedDays
		out.Points = make([]challenge.DayPoint, 0, len(series.Points))
		for _, p := range series.Points {
			out.Points = append(out.Points, challenge.DayPoint{
				Date:    calendar.Format(p.Date),
				Percent: p.Percent,
				Value:   p.Value,
			})
		}
	}

	boards, err := s.leaderboards(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	out.LeaderboardByValue = toItems(boards.ByValue)
	out.LeaderboardByDays = toItems(boards.ByDays)
	return out, nil
}

func (s *ChallengeService) leaderboards(ctx context.Context, challengeID uuid.UUID) (leaderboard.Boards, error) {
	cached, gen, ok := s.cache.Get(ctx, challengeID)
	if ok {
		return *cached, nil
	}
	entries, err := s.db.LeaderboardTotals(ctx, challengeID)
	if err != nil {
		return leaderboard.Boards{}, fmt.Errorf("failed to compute leaderboard: %w", err)
	}
	boards := leaderboard.Build(entries)
	s.cache.Set(ctx, challengeID, gen, boards)
	return boards, nil
}

func toItems(entries []leaderboard.Entry) []challenge.LeaderboardItem {
	items := make([]challenge.LeaderboardItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, challenge.LeaderboardItem{
			UserID:        e.UserID,
			DisplayName:   e.DisplayName,
			TotalValue:    e.TotalValue,
			CompletedDays: e.CompletedDays,
		})
	}
	return items
}
