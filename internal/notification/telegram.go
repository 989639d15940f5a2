package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"repdayAPI/internal/invite"
)

const defaultTelegramAPI = "https://api.telegram.org"

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64       `json:"chat_id"`
	Text        string      `json:"text"`
	ReplyMarkup replyMarkup `json:"reply_markup"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramNotifier sends nudges as bot messages with a button that opens the
// challenge in the mini app.
type TelegramNotifier struct {
	botToken    string
	botUsername string
	baseURL     string
	client      *http.Client
}

func NewTelegramNotifier(botToken, botUsername string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:    botToken,
		botUsername: botUsername,
		baseURL:     defaultTelegramAPI,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// WithBaseURL points the notifier at another Bot API endpoint.
func (t *TelegramNotifier) WithBaseURL(baseURL string) *TelegramNotifier {
	t.baseURL = baseURL
	return t
}

func (t *TelegramNotifier) Channel() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, msg NudgeMessage) error {
	if t.botToken == "" || t.botUsername == "" || msg.ToTelegramID == 0 {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID: msg.ToTelegramID,
		Text:   msg.Text(),
		ReplyMarkup: replyMarkup{InlineKeyboard: [][]inlineButton{{
			{Text: "Открыть челлендж", URL: invite.DeepLink(t.botUsername, msg.InviteCode)},
		}}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read telegram response: status %d: %w", resp.StatusCode, err)
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode telegram response: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram sendMessage failed: status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}
