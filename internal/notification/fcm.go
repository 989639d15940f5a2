package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"repdayAPI/internal/user"
)

// DeviceTokenSource lists the push tokens registered for a user.
type DeviceTokenSource interface {
	ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]user.DeviceToken, error)
}

// pushSender is the part of *messaging.Client the notifier uses.
type pushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMNotifier struct {
	client pushSender
	tokens DeviceTokenSource
	logger *log.Logger
}

// NewFCMNotifier initializes firebase messaging from base64 encoded service
// account JSON, falling back to a credentials file.
func NewFCMNotifier(ctx context.Context, encodedCreds, credsFile string, tokens DeviceTokenSource, logger *log.Logger) (*FCMNotifier, error) {
	var opt option.ClientOption
	switch {
	case encodedCreds != "":
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logger.Info("initializing FCM from service account JSON")
	case credsFile != "":
		opt = option.WithCredentialsFile(credsFile)
		logger.Info("initializing FCM from credentials file", "path", credsFile)
	default:
		return nil, errors.New("no firebase credentials configured")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return newFCMNotifier(client, tokens, logger), nil
}

func newFCMNotifier(client pushSender, tokens DeviceTokenSource, logger *log.Logger) *FCMNotifier {
	return &FCMNotifier{client: client, tokens: tokens, logger: logger}
}

func (f *FCMNotifier) Channel() string { return "fcm" }

// Notify sends one message per device. Batch sends are not used because the
// legacy batch endpoint is gone. It fails only when every device failed.
func (f *FCMNotifier) Notify(ctx context.Context, msg NudgeMessage) error {
	tokens, err := f.tokens.ListDeviceTokens(ctx, msg.ToUserID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"type":         "nudge",
		"challenge_id": msg.ChallengeID.String(),
		"invite_code":  msg.InviteCode,
	}

	success, failure := 0, 0
	for _, t := range tokens {
		m := &messaging.Message{
			Token: t.Token,
			Notification: &messaging.Notification{
				Title: msg.ChallengeTitle,
				Body:  msg.Text(),
			},
			Data: data,
		}
		switch t.Platform {
		case user.PlatformAndroid:
			m.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		case user.PlatformIOS:
			m.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		}

		if _, err := f.client.Send(ctx, m); err != nil {
			f.logger.Warn("FCM send failed", "user_id", msg.ToUserID, "platform", t.Platform, "err", err)
			failure++
			continue
		}
		success++
	}

	f.logger.Debug("FCM delivery finished", "sent", success, "failed", failure)
	if success == 0 && failure > 0 {
		return fmt.Errorf("all %d push notifications failed", failure)
	}
	return nil
}
