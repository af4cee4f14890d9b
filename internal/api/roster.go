package api

import (
	"net/http"
	"net/url"

	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/go-chi/chi/v5"
)

// ListQueues handles GET /api/queues
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.ops.GetQueueStatus(r.Context(), "")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if queues == nil {
		queues = []types.QueueStats{}
	}
	writeJSON(w, http.StatusOK, queues)
}

// GetQueue handles GET /api/queues/{name}
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	queues, err := h.ops.GetQueueStatus(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, queues[0])
}

// GetQueueMembers handles GET /api/queues/{name}/members
func (h *Handler) GetQueueMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.ops.GetQueueMembers(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []status.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type addMemberRequest struct {
	Interface string `json:"interface"`
	Penalty   int    `json:"penalty"`
	Paused    bool   `json:"paused,omitempty"`
	Name      string `json:"name,omitempty"`
}

// AddQueueMember handles POST /api/queues/{name}/members
func (h *Handler) AddQueueMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	queue := chi.URLParam(r, "name")
	if err := h.ops.AddMember(r.Context(), queue, req.Interface, req.Penalty, req.Paused, req.Name); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   "member added",
		"queue":     queue,
		"interface": req.Interface,
	})
}

// RemoveQueueMember handles DELETE /api/queues/{name}/members/{iface}.
// The interface is path-escaped: PJSIP%2F101.
func (h *Handler) RemoveQueueMember(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "name")
	iface, err := url.PathUnescape(chi.URLParam(r, "iface"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid interface")
		return
	}
	if err := h.ops.RemoveMember(r.Context(), queue, iface); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "member removed",
		"queue":     queue,
		"interface": iface,
	})
}
