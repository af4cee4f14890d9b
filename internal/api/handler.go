// Package api exposes the call-center operations over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/callctl/internal/auth"
	"github.com/dennisdiepolder/callctl/internal/callcenter"
	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/supervisor"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/dennisdiepolder/callctl/internal/wrapup"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Operations is what the handlers need from callcenter.Service
type Operations interface {
	GetQueueStatus(ctx context.Context, name string) ([]types.QueueStats, error)
	GetQueueMembers(ctx context.Context, name string) ([]status.Member, error)
	AddMember(ctx context.Context, queue, iface string, penalty int, paused bool, name string) error
	RemoveMember(ctx context.Context, queue, iface string) error
	ApplyQueue(ctx context.Context, name string) (dialplan.MemberPlan, error)
	SetAgentStatus(ctx context.Context, agent string, st callcenter.AgentStatus, reason string) (types.AgentEvent, error)
	GetAgentStats(ctx context.Context, agent, date string) (types.AgentStatusSnapshot, error)
	SubmitWrapUp(ctx context.Context, agent, code, notes, callID string) (types.WrapUp, error)
	ListWrapUps(ctx context.Context, agent, date string) ([]types.WrapUp, error)
	WrapUpCodes() []wrapup.Code
	ListChannels(ctx context.Context) ([]status.Channel, error)
	SupervisorAction(ctx context.Context, req supervisor.Request) (types.SupervisorAction, error)
	CompileAndApply(ctx context.Context, groupID int64) (dialplan.GroupResult, error)
	ApplyAll(ctx context.Context) ([]dialplan.GroupResult, error)
}

// Handler serves the REST API
type Handler struct {
	ops    Operations
	logger zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(ops Operations, logger zerolog.Logger) *Handler {
	return &Handler{
		ops:    ops,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API on r. r must already run the auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/queues", func(r chi.Router) {
		r.Get("/", h.ListQueues)
		r.Get("/{name}", h.GetQueue)
		r.Get("/{name}/members", h.GetQueueMembers)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSupervisor)
			r.Post("/{name}/members", h.AddQueueMember)
			r.Delete("/{name}/members/{iface}", h.RemoveQueueMember)
		})
		r.With(auth.RequireAdmin).Post("/{name}/apply", h.ApplyQueue)
	})

	r.Route("/agents/{agent}", func(r chi.Router) {
		r.Post("/status", h.SetAgentStatus)
		r.Get("/stats", h.GetAgentStats)
		r.Post("/wrapups", h.SubmitWrapUp)
		r.Get("/wrapups", h.ListWrapUps)
	})
	r.Get("/wrapup-codes", h.ListWrapUpCodes)

	r.With(auth.RequireSupervisor).Get("/channels", h.ListChannels)
	r.With(auth.RequireSupervisor).Post("/supervisor/actions", h.SupervisorAction)

	r.Route("/ringgroups", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/apply", h.ApplyAllRingGroups)
		r.Post("/{id}/apply", h.ApplyRingGroup)
	})
}

// actingUser returns the authenticated user or writes 401
func actingUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok || claims == nil {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return claims, true
}
