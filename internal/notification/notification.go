package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NudgeMessage is everything a channel needs to deliver one nudge.
type NudgeMessage struct {
	ChallengeID    uuid.UUID
	ChallengeTitle string
	InviteCode     string

	FromDisplayName string

	ToUserID     uuid.UUID
	ToTelegramID int64
}

// Text is the human readable body shared by all channels.
func (m NudgeMessage) Text() string {
	return fmt.Sprintf("%s пнул(а) вас в челлендже «%s».\nЗаходите в RepDay и отметьтесь за сегодня 💪",
		m.FromDisplayName, m.ChallengeTitle)
}

// Notifier delivers a nudge over one channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, msg NudgeMessage) error
}

// ChannelError records which channel failed.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string { return e.Channel + ": " + e.Err.Error() }
func (e *ChannelError) Unwrap() error { return e.Err }

// MultiNotifier fans a nudge out to every channel and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Channel() string { return "multi" }

func (m MultiNotifier) Notify(ctx context.Context, msg NudgeMessage) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, &ChannelError{Channel: n.Channel(), Err: err})
		}
	}
	return errors.Join(errs...)
}
