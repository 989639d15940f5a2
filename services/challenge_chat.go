package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
)

const (
	maxMessageLength = 2000
	messagePageSize  = 100
)

func (s *ChallengeService) PostMessage(ctx context.Context, viewer *user.User, challengeID uuid.UUID, req challenge.MessageCreateRequest) (*challenge.MessageView, error) {
	c, _, err := s.RequireParticipant(ctx, challengeID, viewer.ID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageLength {
		return nil, validation("invalid_text", fmt.Sprintf("text must be 1 to %d characters", maxMessageLength))
	}

	m, err := s.db.CreateMessage(ctx, challenge.Message{
		ChallengeID: c.ID,
		UserID:      viewer.ID,
		Text:        text,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	view := toMessageView(*m)
	return &view, nil
}

// ListMessages returns the latest messages, newest first.
func (s *ChallengeService) ListMessages(ctx context.Context, viewer *user.User, challengeID uuid.UUID) ([]challenge.MessageView, error) {
	c, _, err := s.RequireParticipant(ctx, challengeID, viewer.ID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.db.ListMessages(ctx, c.ID, messagePageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]challenge.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageView(m))
	}
	return out, nil
}

func toMessageView(m challenge.Message) challenge.MessageView {
	return challenge.MessageView{
		ID:          m.ID,
		ChallengeID: m.ChallengeID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Text:        m.Text,
		CreatedAt:   m.CreatedAt,
	}
}
