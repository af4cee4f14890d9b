// Package callcenter is the set of operations the HTTP layer and the CLI
// call into. It wires the switch, the ledger and the compiler together.
package callcenter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dennisdiepolder/callctl/internal/agentstate"
	"github.com/dennisdiepolder/callctl/internal/alerts"
	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/auth"
	"github.com/dennisdiepolder/callctl/internal/definitions"
	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/dennisdiepolder/callctl/internal/ledger"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/stats"
	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/supervisor"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/dennisdiepolder/callctl/internal/websocket"
	"github.com/dennisdiepolder/callctl/internal/wrapup"
	"github.com/rs/zerolog"
)

// Switch is the switch client as the service uses it
type Switch interface {
	QueueShow(ctx context.Context, queue string) (string, error)
	Channels(ctx context.Context) (string, error)
	AddMember(ctx context.Context, iface, queue string, penalty int, paused bool, name string) error
	RemoveMember(ctx context.Context, iface, queue string) error
	PauseMember(ctx context.Context, iface, queue, reason string, paused bool) error
}

// Publisher fans events out to wallboards
type Publisher interface {
	Publish(eventType string, data any, minRole string)
}

// AgentStatus is a requested agent state change
type AgentStatus string

const (
	StatusLogin     AgentStatus = "login"
	StatusLogout    AgentStatus = "logout"
	StatusPause     AgentStatus = "pause"
	StatusUnpause   AgentStatus = "unpause"
	StatusAvailable AgentStatus = "available"
)

// Deps are the collaborators of a Service. History, Publisher and Shuffler
// are optional.
type Deps struct {
	Switch      Switch
	Definitions definitions.Source
	History     stats.HistorySource
	Ledger      *ledger.Ledger
	Applier     *dialplan.Applier
	Supervisor  *supervisor.Dispatcher
	WrapUps     *wrapup.Recorder
	Publisher   Publisher
	Shuffler    dialplan.Shuffler
	WindowDays  int
	Metrics     *metrics.Metrics
}

// Service implements the inbound operations
type Service struct {
	Deps
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a service
func NewService(deps Deps, logger zerolog.Logger) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	if deps.WindowDays <= 0 {
		deps.WindowDays = stats.DefaultWindowDays
	}
	return &Service{
		Deps:   deps,
		logger: logger.With().Str("component", "callcenter").Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) publish(eventType string, data any, minRole string) {
	if s.Publisher != nil {
		s.Publisher.Publish(eventType, data, minRole)
	}
}

// queues asks the switch for one queue or all of them. Unparseable lines are
// counted and dropped.
func (s *Service) queues(ctx context.Context, name string) ([]status.QueueSummary, error) {
	dump, err := s.Switch.QueueShow(ctx, name)
	if err != nil {
		return nil, err
	}
	summaries, skipped := status.ParseQueues(dump)
	if skipped > 0 {
		s.Metrics.RecordSkippedLines(skipped)
		s.logger.Debug().Int("skipped", skipped).Msg("unrecognized queue show lines")
	}
	return summaries, nil
}

func (s *Service) queue(ctx context.Context, name string) (status.QueueSummary, error) {
	if !dialplan.ValidQueueName(name) {
		return status.QueueSummary{}, apperr.Validation("queue", "invalid queue name %q", name)
	}
	summaries, err := s.queues(ctx, name)
	if err != nil {
		return status.QueueSummary{}, err
	}
	for _, q := range summaries {
		if q.Name == name {
			return q, nil
		}
	}
	return status.QueueSummary{}, apperr.NotFound("queue", name)
}

// GetQueueStatus returns statistics for one queue, or all when name is empty
func (s *Service) GetQueueStatus(ctx context.Context, name string) ([]types.QueueStats, error) {
	var summaries []status.QueueSummary
	if name != "" {
		q, err := s.queue(ctx, name)
		if err != nil {
			return nil, err
		}
		summaries = []status.QueueSummary{q}
	} else {
		var err error
		if summaries, err = s.queues(ctx, ""); err != nil {
			return nil, err
		}
	}

	out := make([]types.QueueStats, 0, len(summaries))
	for _, q := range summaries {
		out = append(out, stats.Display(s.aggregate(ctx, q)))
	}
	return out, nil
}

// aggregate prefers windowed history and falls back to the switch's own
// counters when no history source is configured or it fails
func (s *Service) aggregate(ctx context.Context, q status.QueueSummary) types.QueueStats {
	if s.History == nil {
		return stats.Aggregate(q, nil, 0)
	}
	threshold := q.SLWindow
	if def, err := s.Definitions.Queue(ctx, q.Name); err == nil && def.SLThreshold > 0 {
		threshold = def.SLThreshold
	}
	since, until := stats.Window(s.now(), s.WindowDays)
	h, err := s.History.QueueHistory(ctx, q.Name, since, until, threshold)
	if err != nil {
		s.logger.Warn().Err(err).Str("queue", q.Name).Msg("history unavailable, using switch counters")
		return stats.Aggregate(q, nil, 0)
	}
	return stats.Aggregate(q, &h, s.WindowDays)
}

// GetQueueMembers returns the live members of a queue
func (s *Service) GetQueueMembers(ctx context.Context, name string) ([]status.Member, error) {
	q, err := s.queue(ctx, name)
	if err != nil {
		return nil, err
	}
	return q.Members, nil
}

// AddMember binds iface to a defined queue, optionally starting paused
func (s *Service) AddMember(ctx context.Context, queue, iface string, penalty int, paused bool, name string) error {
	if err := s.checkMember(ctx, queue, iface); err != nil {
		return err
	}
	if penalty < 0 {
		return apperr.Validation("add member", "penalty must not be negative")
	}
	if err := s.Switch.AddMember(ctx, iface, queue, penalty, paused, name); err != nil {
		return err
	}
	s.logger.Info().Str("queue", queue).Str("interface", iface).Msg("member added")
	s.publish(websocket.EventQueueMember, map[string]any{"queue": queue, "interface": iface, "added": true}, "")
	return nil
}

// RemoveMember unbinds iface from a defined queue
func (s *Service) RemoveMember(ctx context.Context, queue, iface string) error {
	if err := s.checkMember(ctx, queue, iface); err != nil {
		return err
	}
	if err := s.Switch.RemoveMember(ctx, iface, queue); err != nil {
		return err
	}
	s.logger.Info().Str("queue", queue).Str("interface", iface).Msg("member removed")
	s.publish(websocket.EventQueueMember, map[string]any{"queue": queue, "interface": iface, "added": false}, "")
	return nil
}

func (s *Service) checkMember(ctx context.Context, queue, iface string) error {
	if !dialplan.ValidQueueName(queue) {
		return apperr.Validation("queue member", "invalid queue name %q", queue)
	}
	if !dialplan.ValidInterface(iface) {
		return apperr.Validation("queue member", "invalid interface %q", iface)
	}
	_, err := s.Definitions.Queue(ctx, queue)
	return err
}

// Interface returns the switch interface of an agent key
func Interface(agent string) string {
	return "PJSIP/" + agent
}

// definedQueues returns the queues whose definition lists agent as an enabled member
func (s *Service) definedQueues(ctx context.Context, agent string) ([]types.QueueMember, error) {
	queues, err := s.Definitions.Queues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = q.Name
	}
	members, err := s.Definitions.QueueMembers(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue members: %w", err)
	}

	iface := Interface(agent)
	var out []types.QueueMember
	for _, name := range names {
		for _, m := range members[name] {
			if m.Enabled && m.Interface == iface {
				m.Queue = name
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// liveMemberships returns the agent's member line in every queue the switch reports
func liveMemberships(summaries []status.QueueSummary, agent string) map[string]status.Member {
	out := make(map[string]status.Member)
	iface := Interface(agent)
	for _, q := range summaries {
		for _, m := range q.Members {
			if m.Interface == iface || m.Extension == agent {
				out[q.Name] = m
			}
		}
	}
	return out
}

// SetAgentStatus issues the switch command for st and, once the switch has
// confirmed, appends the matching event to the agent's ledger. Command and
// append run under the agent's lock.
func (s *Service) SetAgentStatus(ctx context.Context, agent string, st AgentStatus, reason string) (types.AgentEvent, error) {
	const op = "set agent status"
	if err := storage.ValidAgentKey(agent); err != nil {
		return types.AgentEvent{}, err
	}
	iface := Interface(agent)

	var (
		kind    types.AgentEventKind
		command func(ctx context.Context) error
	)
	switch st {
	case StatusLogin:
		defined, err := s.definedQueues(ctx, agent)
		if err != nil {
			return types.AgentEvent{}, err
		}
		if len(defined) == 0 {
			return types.AgentEvent{}, apperr.NotFound(op, "agent "+agent+" is not a member of any queue")
		}
		kind = types.EventLogin
		command = func(ctx context.Context) error { return s.login(ctx, iface, defined) }

	case StatusLogout:
		kind = types.EventLogout
		command = func(ctx context.Context) error { return s.logout(ctx, agent) }

	case StatusPause:
		kind = types.EventPause
		command = func(ctx context.Context) error {
			return s.Switch.PauseMember(ctx, iface, "", reason, true)
		}

	case StatusUnpause, StatusAvailable:
		kind = types.EventUnpause
		reason = ""
		command = func(ctx context.Context) error {
			return s.Switch.PauseMember(ctx, iface, "", "", false)
		}

	default:
		return types.AgentEvent{}, apperr.Validation(op, "unknown status %q", st)
	}

	event, err := s.Ledger.AppendAfter(ctx, agent, "", kind, reason, command)
	if err != nil {
		return types.AgentEvent{}, err
	}
	s.publish(websocket.EventAgentStatus, event, "")
	return event, nil
}

// login adds iface to every defined queue. When one add fails, the queues
// already joined are left again so the switch never holds a login the ledger lacks.
func (s *Service) login(ctx context.Context, iface string, defined []types.QueueMember) error {
	for i, m := range defined {
		err := s.Switch.AddMember(ctx, iface, m.Queue, m.Penalty, m.Paused, m.Name)
		if err == nil {
			continue
		}
		for _, joined := range defined[:i] {
			if rerr := s.Switch.RemoveMember(ctx, iface, joined.Queue); rerr != nil {
				s.logger.Error().Err(rerr).
					Str("interface", iface).
					Str("queue", joined.Queue).
					Msg("failed to undo partial login")
			}
		}
		return err
	}
	return nil
}

// logout removes the agent from every live queue where it is a dynamic member
func (s *Service) logout(ctx context.Context, agent string) error {
	summaries, err := s.queues(ctx, "")
	if err != nil {
		return err
	}
	live := liveMemberships(summaries, agent)
	names := make([]string, 0, len(live))
	for name, m := range live {
		if m.Dynamic {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.Switch.RemoveMember(ctx, Interface(agent), name); err != nil {
			return err
		}
	}
	return nil
}

// GetAgentStats reconstructs the agent's day and compares it with the switch.
// Live state, drift and alerts only apply to the current day.
func (s *Service) GetAgentStats(ctx context.Context, agent, date string) (types.AgentStatusSnapshot, error) {
	const op = "agent stats"
	now := s.now().UTC()
	if date == "" {
		date = types.DateKey(now)
	}
	if err := storage.ValidAgentKey(agent); err != nil {
		return types.AgentStatusSnapshot{}, err
	}
	if err := storage.ValidDate(date); err != nil {
		return types.AgentStatusSnapshot{}, err
	}

	events, err := s.Ledger.Events(ctx, agent, date)
	if err != nil {
		return types.AgentStatusSnapshot{}, err
	}

	day, _ := time.Parse("2006-01-02", date)
	today := date == types.DateKey(now)
	at := now
	if !today {
		at = day.Add(24 * time.Hour)
		if at.After(now) {
			at = day
		}
	}

	snap := types.AgentStatusSnapshot{Agent: agent, Date: date}
	var live agentstate.Live
	if today {
		summaries, err := s.queues(ctx, "")
		if err != nil {
			s.logger.Warn().Err(err).Str("agent", agent).Msg("switch unavailable, reporting ledger state only")
		} else {
			live.Known = true
			memberships := liveMemberships(summaries, agent)
			names := make([]string, 0, len(memberships))
			for name := range memberships {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				m := memberships[name]
				snap.Queues = append(snap.Queues, types.AgentQueueStatus{
					Queue:       name,
					Status:      string(m.Status),
					Paused:      m.Paused,
					PauseReason: m.PauseReason,
					InCall:      m.InCall,
					CallsTaken:  m.CallsTaken,
				})
				snap.CallsTaken += m.CallsTaken
				snap.InCall = snap.InCall || m.InCall
				live.Paused = live.Paused || m.Paused
				snap.Available = snap.Available || m.Available
			}
			live.LoggedIn = len(memberships) > 0
		}
	}

	if len(events) == 0 && len(snap.Queues) == 0 {
		defined, err := s.definedQueues(ctx, agent)
		if err != nil {
			return types.AgentStatusSnapshot{}, err
		}
		if len(defined) == 0 {
			return types.AgentStatusSnapshot{}, apperr.NotFound(op, "agent "+agent)
		}
	}

	res := agentstate.Reconstruct(events, at, live)
	snap.Times = res.AgentTimes
	snap.Drift = res.Drift
	if live.Known {
		snap.LoggedIn = live.LoggedIn
		snap.Paused = live.Paused
		snap.Available = snap.Available && !live.Paused
	} else {
		snap.LoggedIn = res.LoggedIn
		snap.Paused = res.Paused
		snap.Available = false
	}
	if today {
		snap.Alerts = alerts.CheckAgent(res, now)
	}
	if res.Drift {
		s.Metrics.RecordStateDrift()
		s.logger.Warn().
			Str("agent", agent).
			Bool("ledger_logged_in", res.LoggedIn).
			Bool("ledger_paused", res.Paused).
			Bool("switch_logged_in", live.LoggedIn).
			Bool("switch_paused", live.Paused).
			Msg("agent state drift")
	}

	wrapUps, err := s.WrapUps.List(ctx, agent, date)
	if err != nil {
		return types.AgentStatusSnapshot{}, err
	}
	snap.WrapUps = len(wrapUps)
	return snap, nil
}

// SupervisorAction audits and issues a privileged channel operation.
// The caller has already checked the actor's role.
func (s *Service) SupervisorAction(ctx context.Context, req supervisor.Request) (types.SupervisorAction, error) {
	entry, err := s.Supervisor.Dispatch(ctx, req)
	if entry.ID != "" {
		s.publish(websocket.EventSupervisorAction, map[string]any{
			"action": entry,
			"ok":     err == nil,
		}, auth.RoleSupervisor)
	}
	return entry, err
}

// CompileAndApply compiles one ring group and applies it
func (s *Service) CompileAndApply(ctx context.Context, groupID int64) (dialplan.GroupResult, error) {
	g, err := s.Definitions.RingGroup(ctx, groupID)
	if err != nil {
		return dialplan.GroupResult{}, err
	}
	res := dialplan.GroupResult{ID: g.ID, Number: g.Number}
	art, err := dialplan.CompileRingGroup(g, s.Shuffler)
	if err == nil {
		res.Artifact = art.Name
		err = s.Applier.Apply(ctx, art)
	}
	res.Err = err
	s.publish(websocket.EventApply, applyView(res), auth.RoleSupervisor)
	return res, err
}

// ApplyAll compiles and applies every ring group. A failing group does not
// stop the others; the error return is reserved for listing failures.
func (s *Service) ApplyAll(ctx context.Context) ([]dialplan.GroupResult, error) {
	groups, err := s.Definitions.RingGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ring groups: %w", err)
	}
	results := s.Applier.ApplyAll(ctx, groups, s.Shuffler)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		s.publish(websocket.EventApply, applyView(r), auth.RoleSupervisor)
	}
	s.logger.Info().Int("groups", len(results)).Int("failed", failed).Msg("ring groups applied")
	return results, nil
}

// ApplyQueue writes a queue's configuration, reloads it and then brings the
// live dynamic membership in line with the definition
func (s *Service) ApplyQueue(ctx context.Context, name string) (dialplan.MemberPlan, error) {
	q, err := s.Definitions.Queue(ctx, name)
	if err != nil {
		return dialplan.MemberPlan{}, err
	}
	members, err := s.Definitions.QueueMembers(ctx, []string{name})
	if err != nil {
		return dialplan.MemberPlan{}, fmt.Errorf("failed to list queue members: %w", err)
	}
	art, err := dialplan.CompileQueue(q, members[name])
	if err != nil {
		return dialplan.MemberPlan{}, err
	}
	if err := s.Applier.Apply(ctx, art); err != nil {
		return dialplan.MemberPlan{}, err
	}

	live, err := s.queue(ctx, name)
	if err != nil {
		return dialplan.MemberPlan{}, err
	}
	plan := dialplan.PlanMembers(name, members[name], live.Members)
	for _, m := range plan.Add {
		if err := s.Switch.AddMember(ctx, m.Interface, name, m.Penalty, m.Paused, m.Name); err != nil {
			return plan, err
		}
	}
	for _, iface := range plan.Remove {
		if err := s.Switch.RemoveMember(ctx, iface, name); err != nil {
			return plan, err
		}
	}
	s.publish(websocket.EventApply, map[string]any{"queue": name, "added": len(plan.Add), "removed": len(plan.Remove)}, auth.RoleSupervisor)
	return plan, nil
}

func applyView(r dialplan.GroupResult) map[string]any {
	view := map[string]any{"id": r.ID, "number": r.Number, "artifact": r.Artifact, "ok": r.Err == nil}
	if r.Err != nil {
		view["error"] = r.Err.Error()
		view["kind"] = string(apperr.KindOf(r.Err))
	}
	return view
}

// SubmitWrapUp records a post-call disposition
func (s *Service) SubmitWrapUp(ctx context.Context, agent, code, notes, callID string) (types.WrapUp, error) {
	w, err := s.WrapUps.Submit(ctx, agent, code, notes, callID)
	if err != nil {
		return types.WrapUp{}, err
	}
	s.publish(websocket.EventWrapUp, w, auth.RoleSupervisor)
	return w, nil
}

// WrapUpCodes lists the codes agents may submit
func (s *Service) WrapUpCodes() []wrapup.Code {
	return s.WrapUps.Catalog().Codes()
}

// ListWrapUps returns the agent's wrap-ups for date
func (s *Service) ListWrapUps(ctx context.Context, agent, date string) ([]types.WrapUp, error) {
	if date == "" {
		date = types.DateKey(s.now())
	}
	return s.WrapUps.List(ctx, agent, date)
}

// ListChannels returns the active channels
func (s *Service) ListChannels(ctx context.Context) ([]status.Channel, error) {
	dump, err := s.Switch.Channels(ctx)
	if err != nil {
		return nil, err
	}
	channels, skipped := status.ParseChannels(dump)
	if skipped > 0 {
		s.Metrics.RecordSkippedLines(skipped)
	}
	return channels, nil
}
