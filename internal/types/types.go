package types

import "time"

// AgentEventKind is the kind of an agent ledger entry
type AgentEventKind string

const (
	EventLogin   AgentEventKind = "LOGIN"
	EventLogout  AgentEventKind = "LOGOUT"
	EventPause   AgentEventKind = "PAUSE"
	EventUnpause AgentEventKind = "UNPAUSE"
)

// Valid reports whether k is one of the four ledger kinds
func (k AgentEventKind) Valid() bool {
	switch k {
	case EventLogin, EventLogout, EventPause, EventUnpause:
		return true
	}
	return false
}

// AgentEvent is one immutable entry in an agent's daily ledger
type AgentEvent struct {
	ID        string         `json:"id" dynamodbav:"ID"`
	Agent     string         `json:"agent" dynamodbav:"Agent"`
	Queue     string         `json:"queue,omitempty" dynamodbav:"Queue"`
	Timestamp time.Time      `json:"timestamp" dynamodbav:"Timestamp"`
	Kind      AgentEventKind `json:"kind" dynamodbav:"Kind"`
	Reason    string         `json:"reason,omitempty" dynamodbav:"Reason"`
}

// WrapUp is a post-call disposition submitted by an agent
type WrapUp struct {
	ID        string    `json:"id" dynamodbav:"ID"`
	Agent     string    `json:"agent" dynamodbav:"Agent"`
	CallID    string    `json:"callId,omitempty" dynamodbav:"CallID"`
	Code      string    `json:"code" dynamodbav:"Code"`
	Notes     string    `json:"notes,omitempty" dynamodbav:"Notes"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"Timestamp"`
}

// SupervisorActionKind enumerates privileged channel operations
type SupervisorActionKind string

const (
	ActionListen      SupervisorActionKind = "listen"
	ActionWhisper     SupervisorActionKind = "whisper"
	ActionBarge       SupervisorActionKind = "barge"
	ActionForceStatus SupervisorActionKind = "force-status"
	ActionHangup      SupervisorActionKind = "hangup"
)

// SupervisorAction is a write-only audit entry
type SupervisorAction struct {
	ID            string               `json:"id" dynamodbav:"ID"`
	Supervisor    string               `json:"supervisor" dynamodbav:"Supervisor"`
	Action        SupervisorActionKind `json:"action" dynamodbav:"Action"`
	TargetChannel string               `json:"targetChannel" dynamodbav:"TargetChannel"`
	Detail        string               `json:"detail,omitempty" dynamodbav:"Detail"`
	Timestamp     time.Time            `json:"timestamp" dynamodbav:"Timestamp"`
}

// AgentTimes holds reconstructed interval totals, in seconds
type AgentTimes struct {
	LoginSeconds     float64 `json:"loginSeconds"`
	PauseSeconds     float64 `json:"pauseSeconds"`
	AvailableSeconds float64 `json:"availableSeconds"`
	LoggedIn         bool    `json:"loggedIn"`
	Paused           bool    `json:"paused"`
}

// AgentQueueStatus is an agent's membership state in one queue
type AgentQueueStatus struct {
	Queue       string `json:"queue"`
	Status      string `json:"status"`
	Paused      bool   `json:"paused"`
	PauseReason string `json:"pauseReason,omitempty"`
	InCall      bool   `json:"inCall"`
	CallsTaken  int    `json:"callsTaken"`
}

// AgentStatusSnapshot is derived on every query and never persisted
type AgentStatusSnapshot struct {
	Agent      string             `json:"agent"`
	Date       string             `json:"date"`
	Available  bool               `json:"available"`
	Paused     bool               `json:"paused"`
	InCall     bool               `json:"inCall"`
	LoggedIn   bool               `json:"loggedIn"`
	Queues     []AgentQueueStatus `json:"queues"`
	CallsTaken int                `json:"callsTaken"`
	Times      AgentTimes         `json:"times"`
	WrapUps    int                `json:"wrapUps"`
	Drift      bool               `json:"drift"`
	Alerts     []Alert            `json:"alerts,omitempty"`
}

// AlertSeverity mirrors the wallboard colour levels
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a condition worth a supervisor's attention
type Alert struct {
	Type     string        `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
	Since    float64       `json:"since,omitempty"` // seconds
}

// DateKey formats t as the UTC YYYY-MM-DD stream key used by the ledger
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
