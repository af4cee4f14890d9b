// Package supervisor issues privileged channel operations and audits them.
package supervisor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Switch is the part of the switch client the dispatcher drives
type Switch interface {
	Spy(ctx context.Context, iface, channel, options string) error
	Hangup(ctx context.Context, channel string) error
	PauseMember(ctx context.Context, iface, queue, reason string, paused bool) error
}

// AgentLedger records forced status changes in the agent's stream, running
// the switch command under the same per-agent lock
type AgentLedger interface {
	AppendAfter(ctx context.Context, agent, queue string, kind types.AgentEventKind, reason string, command func(ctx context.Context) error) (types.AgentEvent, error)
}

// ChanSpy option sets per monitoring mode
var spyOptions = map[types.SupervisorActionKind]string{
	types.ActionListen:  "qE",
	types.ActionWhisper: "qwE",
	types.ActionBarge:   "qBE",
}

var channelRe = regexp.MustCompile(`^[A-Za-z0-9]+/[A-Za-z0-9_.@+\-;]+$`)

// Request is one supervisor action.
// Origin is the supervisor's own device for listen, whisper and barge.
// Paused and Reason apply to force-status.
type Request struct {
	Kind       types.SupervisorActionKind `json:"action"`
	Supervisor string                     `json:"supervisor"`
	Target     string                     `json:"targetChannel"`
	Origin     string                     `json:"origin,omitempty"`
	Queue      string                     `json:"queue,omitempty"`
	Paused     bool                       `json:"paused,omitempty"`
	Reason     string                     `json:"reason,omitempty"`
}

// Dispatcher validates, audits and then issues supervisor actions.
// Role checks happen before a request reaches it.
type Dispatcher struct {
	sw      Switch
	store   storage.Store
	ledger  AgentLedger
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(sw Switch, store storage.Store, ledger AgentLedger, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if m == nil {
		m = metrics.Get()
	}
	return &Dispatcher{
		sw:      sw,
		store:   store,
		ledger:  ledger,
		metrics: m,
		logger:  logger.With().Str("component", "supervisor").Logger(),
		now:     time.Now,
	}
}

// ValidChannel reports whether target looks like a channel or interface id
func ValidChannel(target string) bool {
	return channelRe.MatchString(target)
}

func validate(req Request) error {
	const op = "supervisor action"
	if req.Target == "" {
		return apperr.Validation(op, "target channel is required")
	}
	if !ValidChannel(req.Target) {
		return apperr.Validation(op, "malformed target channel %q", req.Target)
	}
	if req.Supervisor == "" {
		return apperr.Validation(op, "supervisor is required")
	}
	switch req.Kind {
	case types.ActionListen, types.ActionWhisper, types.ActionBarge:
		if !ValidChannel(req.Origin) {
			return apperr.Validation(op, "%s needs the supervisor's device, got %q", req.Kind, req.Origin)
		}
	case types.ActionForceStatus, types.ActionHangup:
	default:
		return apperr.Validation(op, "unknown action %q", req.Kind)
	}
	return nil
}

// Dispatch audits req and issues it. The audit record is written first, so
// it stays in place even when the command fails or times out.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (entry types.SupervisorAction, err error) {
	if err := validate(req); err != nil {
		return types.SupervisorAction{}, err
	}
	defer func() { d.metrics.RecordSupervisorAction(string(req.Kind), err) }()

	entry = types.SupervisorAction{
		ID:            uuid.NewString(),
		Supervisor:    req.Supervisor,
		Action:        req.Kind,
		TargetChannel: req.Target,
		Detail:        detail(req),
		Timestamp:     d.now().UTC(),
	}
	if err := d.store.AppendSupervisorAction(ctx, entry); err != nil {
		return types.SupervisorAction{}, fmt.Errorf("failed to write audit record: %w", err)
	}

	log := d.logger.With().
		Str("action", string(req.Kind)).
		Str("supervisor", req.Supervisor).
		Str("target", req.Target).
		Logger()

	if err := d.issue(ctx, req); err != nil {
		log.Error().Err(err).Msg("supervisor action failed")
		return entry, err
	}
	log.Info().Msg("supervisor action issued")
	return entry, nil
}

func (d *Dispatcher) issue(ctx context.Context, req Request) error {
	switch req.Kind {
	case types.ActionHangup:
		return d.sw.Hangup(ctx, req.Target)
	case types.ActionForceStatus:
		pause := func(ctx context.Context) error {
			return d.sw.PauseMember(ctx, MemberInterface(req.Target), req.Queue, req.Reason, req.Paused)
		}
		if d.ledger == nil {
			return pause(ctx)
		}
		kind := types.EventUnpause
		if req.Paused {
			kind = types.EventPause
		}
		_, err := d.ledger.AppendAfter(ctx, AgentOf(req.Target), req.Queue, kind, req.Reason, pause)
		return err
	default:
		return d.sw.Spy(ctx, req.Origin, req.Target, spyOptions[req.Kind])
	}
}

func detail(req Request) string {
	switch req.Kind {
	case types.ActionForceStatus:
		state := "unpause"
		if req.Paused {
			state = "pause"
		}
		parts := []string{state}
		if req.Queue != "" {
			parts = append(parts, "queue="+req.Queue)
		}
		if req.Reason != "" {
			parts = append(parts, "reason="+req.Reason)
		}
		return strings.Join(parts, " ")
	case types.ActionListen, types.ActionWhisper, types.ActionBarge:
		return "origin=" + req.Origin
	}
	return ""
}

// AgentOf returns the agent key of an interface or channel,
// "PJSIP/101-0000002a" -> "101"
func AgentOf(target string) string {
	if i := strings.IndexByte(target, '/'); i >= 0 {
		target = target[i+1:]
	}
	if i := strings.LastIndexByte(target, '-'); i > 0 && isHex(target[i+1:]) {
		target = target[:i]
	}
	return target
}

// MemberInterface returns the queue member interface behind a channel,
// "PJSIP/101-0000002a" -> "PJSIP/101". A bare agent key gets PJSIP.
func MemberInterface(target string) string {
	tech := "PJSIP"
	if i := strings.IndexByte(target, '/'); i > 0 {
		tech = target[:i]
	}
	return tech + "/" + AgentOf(target)
}

func isHex(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
