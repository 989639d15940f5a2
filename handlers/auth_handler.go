package handlers

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"repdayAPI/internal/user"
	"repdayAPI/services"
)

type AuthHandler struct {
	authService *services.AuthService
	logger      *log.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *log.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) LoginTelegram(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req user.TelegramAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.LoginTelegram(ctx, req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
