package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application collectors
type Metrics struct {
	registry *prometheus.Registry

	switchCommands        *prometheus.CounterVec
	switchCommandDuration *prometheus.HistogramVec
	parseSkippedLines     prometheus.Counter

	appliesTotal      *prometheus.CounterVec
	ledgerAppends     *prometheus.CounterVec
	supervisorActions *prometheus.CounterVec
	wrapUpsTotal      *prometheus.CounterVec
	stateDrift        prometheus.Counter

	wsConnections prometheus.Gauge
	wsMessages    prometheus.Counter
	wsErrors      prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New(prometheus.NewRegistry())
	})
	return instance
}

// New registers a fresh set of collectors on reg
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		switchCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_switch_commands_total",
			Help: "Switch CLI commands issued, by command verb and outcome",
		}, []string{"command", "outcome"}),
		switchCommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callctl_switch_command_duration_seconds",
			Help:    "Switch CLI round-trip latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"command"}),
		parseSkippedLines: f.NewCounter(prometheus.CounterOpts{
			Name: "callctl_status_lines_skipped_total",
			Help: "Status dump lines that matched no known pattern",
		}),
		appliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_applies_total",
			Help: "Compiled artifact applies, by artifact kind and outcome",
		}, []string{"kind", "outcome"}),
		ledgerAppends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_ledger_appends_total",
			Help: "Agent ledger events appended, by event kind",
		}, []string{"kind"}),
		supervisorActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_supervisor_actions_total",
			Help: "Supervisor actions dispatched, by action and outcome",
		}, []string{"action", "outcome"}),
		wrapUpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_wrapups_total",
			Help: "Wrap-up codes recorded",
		}, []string{"code"}),
		stateDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "callctl_agent_state_drift_total",
			Help: "Agent snapshots where the ledger disagreed with live switch state",
		}),
		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "callctl_websocket_active_connections",
			Help: "Connected wallboard clients",
		}),
		wsMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "callctl_websocket_messages_total",
			Help: "Messages broadcast to wallboard clients",
		}),
		wsErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "callctl_websocket_errors_total",
			Help: "Wallboard websocket errors",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callctl_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callctl_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordSwitchCommand counts one switch round-trip
func (m *Metrics) RecordSwitchCommand(command string, duration time.Duration, err error) {
	m.switchCommands.WithLabelValues(command, outcome(err)).Inc()
	m.switchCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordSkippedLines adds n unparsed status lines
func (m *Metrics) RecordSkippedLines(n int) {
	if n > 0 {
		m.parseSkippedLines.Add(float64(n))
	}
}

// RecordApply counts a config write + reload
func (m *Metrics) RecordApply(kind string, err error) {
	m.appliesTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordLedgerAppend counts an agent event append
func (m *Metrics) RecordLedgerAppend(kind string) {
	m.ledgerAppends.WithLabelValues(kind).Inc()
}

// RecordSupervisorAction counts a dispatched supervisor action
func (m *Metrics) RecordSupervisorAction(action string, err error) {
	m.supervisorActions.WithLabelValues(action, outcome(err)).Inc()
}

// RecordWrapUp counts a recorded wrap-up code
func (m *Metrics) RecordWrapUp(code string) {
	m.wrapUpsTotal.WithLabelValues(code).Inc()
}

// RecordStateDrift counts a ledger/switch disagreement
func (m *Metrics) RecordStateDrift() {
	m.stateDrift.Inc()
}

// RecordWebSocketConnect tracks a new wallboard client
func (m *Metrics) RecordWebSocketConnect() {
	m.wsConnections.Inc()
}

// RecordWebSocketDisconnect tracks a departed wallboard client
func (m *Metrics) RecordWebSocketDisconnect() {
	m.wsConnections.Dec()
}

// RecordWebSocketMessage counts a broadcast
func (m *Metrics) RecordWebSocketMessage() {
	m.wsMessages.Inc()
}

// RecordWebSocketError counts a websocket failure
func (m *Metrics) RecordWebSocketError() {
	m.wsErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
