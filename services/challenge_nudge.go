package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"repdayAPI/internal/apperr"
	"repdayAPI/internal/metrics"
	"repdayAPI/internal/notification"
	"repdayAPI/internal/nudge"
	"repdayAPI/internal/store"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

// SendNudge records a nudge from viewer to target and queues its delivery.
// Delivery happens after the nudge is committed and never affects the result.
func (s *ChallengeService) SendNudge(ctx context.Context, viewer *user.User, challengeID, target uuid.UUID) (*challenge.NudgeResponse, error) {
	if err := nudge.CheckSelf(viewer.ID, target); err != nil {
		metrics.NudgesTotal.WithLabelValues(metrics.NudgeRejected).Inc()
		return nil, err
	}
	c, _, err := s.RequireParticipant(ctx, challengeID, viewer.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	n, err := s.db.AppendNudge(ctx, store.NudgeAttempt{
		ChallengeID: c.ID,
		FromUserID:  viewer.ID,
		ToUserID:    target,
		Today:       s.today(),
		Now:         now,
	}, func(snap nudge.Snapshot) error {
		return nudge.Evaluate(snap, now)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			metrics.NudgesTotal.WithLabelValues(metrics.NudgeRejected).Inc()
			return nil, err
		}
		if errors.Is(err, store.ErrNotFound) {
			metrics.NudgesTotal.WithLabelValues(metrics.NudgeRejected).Inc()
			return nil, nudge.ErrTargetNotParticipant
		}
		return nil, fmt.Errorf("failed to save nudge: %w", err)
	}
	metrics.NudgesTotal.WithLabelValues(metrics.NudgeSent).Inc()
	s.logger.Info("nudge sent", "challenge_id", c.ID, "from", viewer.ID, "to", target)

	s.dispatchNudge(ctx, c, viewer, target)

	return &challenge.NudgeResponse{
		OK:                   true,
		NudgedAt:             n.CreatedAt,
		NextNudgeAvailableAt: nudge.NextAvailableAt(n.CreatedAt),
	}, nil
}

func (s *ChallengeService) dispatchNudge(ctx context.Context, c *challenge.Challenge, from *user.User, target uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	to, err := s.db.GetUser(ctx, target)
	if err != nil {
		s.logger.Warn("nudge recipient lookup failed", "challenge_id", c.ID, "user_id", target, "err", err)
		return
	}
	msg := notification.NudgeMessage{
		ChallengeID:     c.ID,
		ChallengeTitle:  c.Title,
		InviteCode:      c.InviteCode,
		FromDisplayName: from.DisplayName,
		ToUserID:        to.ID,
	}
	if to.BotChatActive {
		msg.ToTelegramID = to.TelegramID
	}
	s.dispatcher.Dispatch(msg)
}
