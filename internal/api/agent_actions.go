package api

import (
	"net/http"

	"github.com/dennisdiepolder/callctl/internal/callcenter"
	"github.com/dennisdiepolder/callctl/internal/supervisor"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/go-chi/chi/v5"
)

type agentStatusRequest struct {
	Status callcenter.AgentStatus `json:"status"`
	Reason string                 `json:"reason,omitempty"`
}

// SetAgentStatus handles POST /api/agents/{agent}/status
func (h *Handler) SetAgentStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := actingUser(w, r)
	if !ok {
		return
	}
	agent := chi.URLParam(r, "agent")
	if !claims.CanActFor(agent) {
		writeMessage(w, http.StatusForbidden, "not allowed to change this agent")
		return
	}

	var req agentStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	event, err := h.ops.SetAgentStatus(r.Context(), agent, req.Status, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info().
		Str("agent", agent).
		Str("status", string(req.Status)).
		Str("by", claims.Email).
		Msg("agent status changed via API")
	writeJSON(w, http.StatusOK, event)
}

type supervisorActionRequest struct {
	Action types.SupervisorActionKind `json:"action"`
	Target string                     `json:"target"`
	Origin string                     `json:"origin,omitempty"`
	Queue  string                     `json:"queue,omitempty"`
	Paused bool                       `json:"paused,omitempty"`
	Reason string                     `json:"reason,omitempty"`
}

// SupervisorAction handles POST /api/supervisor/actions.
// Spy actions ring the supervisor's own extension unless an origin is given.
func (h *Handler) SupervisorAction(w http.ResponseWriter, r *http.Request) {
	claims, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req supervisorActionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	origin := req.Origin
	if origin == "" && claims.Extension != "" {
		origin = callcenter.Interface(claims.Extension)
	}
	actor := claims.Email
	if actor == "" {
		actor = claims.Subject
	}

	entry, err := h.ops.SupervisorAction(r.Context(), supervisor.Request{
		Kind:       req.Action,
		Supervisor: actor,
		Target:     req.Target,
		Origin:     origin,
		Queue:      req.Queue,
		Paused:     req.Paused,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListChannels handles GET /api/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.ops.ListChannels(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if channels == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, channels)
}
