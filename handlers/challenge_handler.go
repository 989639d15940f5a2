package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"repdayAPI/internal/types/challenge"
	"repdayAPI/services"
)

const requestTimeout = 5 * time.Second

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	logger           *log.Logger
}

func NewChallengeHandler(challengeService *services.ChallengeService, logger *log.Logger) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService, logger: logger}
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.challengeService.ListChallenges(ctx, viewer)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req challenge.CreateChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	detail, err := h.challengeService.CreateChallenge(ctx, viewer, req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, detail)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.challengeService.GetChallenge(ctx, viewer, id)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *ChallengeHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.DeleteChallenge(ctx, viewer, id); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *ChallengeHandler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	short, err := h.challengeService.ResolveInvite(ctx, mux.Vars(r)["code"])
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, short)
}

func (h *ChallengeHandler) JoinByInviteCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}

	detail, err := h.challengeService.JoinByInviteCode(ctx, viewer, mux.Vars(r)["code"])
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.challengeService.Join(ctx, viewer, id)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *ChallengeHandler) SubmitProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req challenge.ProgressUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.challengeService.SubmitProgress(ctx, viewer, id, req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ChallengeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	stats, err := h.challengeService.GetStats(ctx, viewer, id)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *ChallengeHandler) SendNudge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	target, err := uuid.Parse(r.URL.Query().Get("to_user_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Query parameter 'to_user_id' must be a user id")
		return
	}

	resp, err := h.challengeService.SendNudge(ctx, viewer, id, target)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ChallengeHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	target, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.challengeService.RemoveParticipant(ctx, viewer, id, target); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *ChallengeHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	msgs, err := h.challengeService.ListMessages(ctx, viewer, id)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, msgs)
}

func (h *ChallengeHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req challenge.MessageCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.challengeService.PostMessage(ctx, viewer, id, req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, msg)
}

func (h *ChallengeHandler) InviteQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	qr, err := h.challengeService.InviteQR(ctx, viewer, id)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, qr)
}
