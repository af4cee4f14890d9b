package api

import (
	"net/http"

	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/go-chi/chi/v5"
)

// GetAgentStats returns the reconstructed day of an agent
// GET /api/agents/{agent}/stats?date=YYYY-MM-DD
func (h *Handler) GetAgentStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := actingUser(w, r)
	if !ok {
		return
	}
	agent := chi.URLParam(r, "agent")
	if !claims.CanActFor(agent) {
		writeMessage(w, http.StatusForbidden, "not allowed to read this agent")
		return
	}

	snap, err := h.ops.GetAgentStats(r.Context(), agent, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type wrapUpRequest struct {
	Code   string `json:"code"`
	Notes  string `json:"notes,omitempty"`
	CallID string `json:"callId,omitempty"`
}

// SubmitWrapUp records a disposition for the agent's last call
// POST /api/agents/{agent}/wrapups
func (h *Handler) SubmitWrapUp(w http.ResponseWriter, r *http.Request) {
	claims, ok := actingUser(w, r)
	if !ok {
		return
	}
	agent := chi.URLParam(r, "agent")
	if !claims.CanActFor(agent) {
		writeMessage(w, http.StatusForbidden, "not allowed to submit for this agent")
		return
	}

	var req wrapUpRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	wrapUp, err := h.ops.SubmitWrapUp(r.Context(), agent, req.Code, req.Notes, req.CallID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, wrapUp)
}

// ListWrapUps returns the agent's wrap-ups on a specific date
// GET /api/agents/{agent}/wrapups?date=YYYY-MM-DD
func (h *Handler) ListWrapUps(w http.ResponseWriter, r *http.Request) {
	claims, ok := actingUser(w, r)
	if !ok {
		return
	}
	agent := chi.URLParam(r, "agent")
	if !claims.CanActFor(agent) {
		writeMessage(w, http.StatusForbidden, "not allowed to read this agent")
		return
	}

	wrapUps, err := h.ops.ListWrapUps(r.Context(), agent, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if wrapUps == nil {
		wrapUps = []types.WrapUp{}
	}
	writeJSON(w, http.StatusOK, wrapUps)
}

// ListWrapUpCodes handles GET /api/wrapup-codes
func (h *Handler) ListWrapUpCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ops.WrapUpCodes())
}
