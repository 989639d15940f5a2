package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"repdayAPI/internal/auth"
	"repdayAPI/services"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxWebhookBody       = 1 << 20
)

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramMessage struct {
	From *auth.TelegramUser `json:"from"`
	Chat telegramChat       `json:"chat"`
}

type telegramChatMember struct {
	Status string `json:"status"`
}

type telegramMemberUpdate struct {
	From          auth.TelegramUser  `json:"from"`
	Chat          telegramChat       `json:"chat"`
	NewChatMember telegramChatMember `json:"new_chat_member"`
}

type telegramUpdate struct {
	UpdateID      int64                 `json:"update_id"`
	Message       *telegramMessage      `json:"message"`
	EditedMessage *telegramMessage      `json:"edited_message"`
	MyChatMember  *telegramMemberUpdate `json:"my_chat_member"`
}

type WebhookHandler struct {
	userService *services.UserService
	secret      string
	logger      *log.Logger
}

func NewWebhookHandler(userService *services.UserService, secret string, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
		logger:      logger,
	}
}

// HandleTelegramWebhook tracks which users have a private chat with the bot.
// Telegram retries on non-2xx answers, so processing errors are only logged.
func (h *WebhookHandler) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.verifySecret(r) {
		h.logger.Warn("invalid telegram webhook secret")
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Error reading body")
		return
	}
	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Error parsing update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.apply(ctx, update); err != nil {
		h.logger.Error("failed to process telegram update", "update_id", update.UpdateID, "err", err)
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WebhookHandler) apply(ctx context.Context, update telegramUpdate) error {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg != nil && msg.From != nil && msg.Chat.Type == "private" {
		return h.userService.MarkBotChatActive(ctx, msg.From.Identity(), true)
	}

	if m := update.MyChatMember; m != nil && m.Chat.Type == "private" {
		switch m.NewChatMember.Status {
		case "kicked":
			return h.userService.MarkBotChatActive(ctx, m.From.Identity(), false)
		case "member":
			return h.userService.MarkBotChatActive(ctx, m.From.Identity(), true)
		}
	}
	return nil
}

func (h *WebhookHandler) verifySecret(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(telegramSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
