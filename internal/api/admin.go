package api

import (
	"net/http"
	"strconv"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/go-chi/chi/v5"
)

// groupResult is the JSON shape of one ring group apply outcome
type groupResult struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Artifact string `json:"artifact,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func toGroupResult(r dialplan.GroupResult) groupResult {
	out := groupResult{ID: r.ID, Number: r.Number, Artifact: r.Artifact, OK: r.Err == nil}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.Kind = string(apperr.KindOf(r.Err))
	}
	return out
}

// ApplyRingGroup compiles and applies one ring group
// POST /api/ringgroups/{id}/apply
func (h *Handler) ApplyRingGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid ring group id")
		return
	}

	res, err := h.ops.CompileAndApply(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info().Int64("id", id).Str("artifact", res.Artifact).Msg("ring group applied via API")
	writeJSON(w, http.StatusOK, toGroupResult(res))
}

// ApplyAllRingGroups compiles and applies every ring group. Individual
// failures are reported per group; the request itself still succeeds.
// POST /api/ringgroups/apply
func (h *Handler) ApplyAllRingGroups(w http.ResponseWriter, r *http.Request) {
	results, err := h.ops.ApplyAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]groupResult, len(results))
	failed := 0
	for i, res := range results {
		out[i] = toGroupResult(res)
		if res.Err != nil {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": out,
		"applied": len(results) - failed,
		"failed":  failed,
	})
}

// ApplyQueue writes a queue's configuration and reconciles its dynamic members
// POST /api/queues/{name}/apply
func (h *Handler) ApplyQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	plan, err := h.ops.ApplyQueue(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	added := make([]string, len(plan.Add))
	for i, m := range plan.Add {
		added[i] = m.Interface
	}
	removed := plan.Remove
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   name,
		"added":   added,
		"removed": removed,
	})
}
