package handlers

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"repdayAPI/internal/user"
	"repdayAPI/services"
)

type UserHandler struct {
	userService *services.UserService
	logger      *log.Logger
}

func NewUserHandler(userService *services.UserService, logger *log.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.userService.GetMe(viewer))
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req user.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	me, err := h.userService.UpdateMe(ctx, viewer, req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, me)
}

func (h *UserHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req user.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.RegisterDevice(ctx, viewer, req); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}
