package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the coaching client.
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
type Metrics struct {
	registry           *prometheus.Registry
	eventsTotal        *prometheus.CounterVec
	eventsIgnored      prometheus.Counter
	playbackStarted    *prometheus.CounterVec
	playbackFailed     *prometheus.CounterVec
	playbackSuppressed *prometheus.CounterVec
	renderIterations   prometheus.Counter
	sessionState       prometheus.Gauge
	reconnectsTotal    prometheus.Counter
	requestsTotal      *prometheus.CounterVec
	errorsTotal        prometheus.Counter
	statusFailures     *prometheus.CounterVec
	journalDropped     prometheus.Counter
}

// New creates and registers Prometheus metrics for the client.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_events_total",
			Help: "Total number of decoded events dispatched, by message type",
		}, []string{"type"}),
		eventsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_events_ignored_total",
			Help: "Total number of inbound payloads dropped as malformed or of unknown type",
		}),
		playbackStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_playback_started_total",
			Help: "Total number of playbacks actually started, by channel",
		}, []string{"channel"}),
		playbackFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_playback_failed_total",
			Help: "Total number of playback start failures, by channel",
		}, []string{"channel"}),
		playbackSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_playback_suppressed_total",
			Help: "Total number of play requests dropped because the source was already current",
		}, []string{"channel"}),
		renderIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_render_iterations_total",
			Help: "Total number of overlay render loop iterations",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coach_session_state",
			Help: "Current session state (0 homepage, 1 session active, 2 exercise active, 3 transition overlay)",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_transport_reconnects_total",
			Help: "Total number of event source reconnect attempts",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_status_requests_total",
			Help: "Total number of HTTP requests received on the status surface, by route pattern",
		}, []string{"route"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_status_errors_total",
			Help: "Total number of status surface responses with error status (4xx or 5xx)",
		}),
		statusFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_status_failures_total",
			Help: "Total number of status surface handler failures, by reason",
		}, []string{"reason"}),
		journalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_journal_writes_dropped_total",
			Help: "Total number of journal writes dropped because the write queue was full",
		}),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.eventsIgnored,
		m.playbackStarted,
		m.playbackFailed,
		m.playbackSuppressed,
		m.renderIterations,
		m.sessionState,
		m.reconnectsTotal,
		m.requestsTotal,
		m.errorsTotal,
		m.statusFailures,
		m.journalDropped,
	)

	return m
}

// IncEvent counts one dispatched event of the given message type.
func (m *Metrics) IncEvent(msgType string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(msgType).Inc()
}

// IncIgnored counts one dropped inbound payload.
func (m *Metrics) IncIgnored() {
	if m == nil {
		return
	}
	m.eventsIgnored.Inc()
}

// IncPlaybackStarted counts one playback start on channel.
func (m *Metrics) IncPlaybackStarted(channel string) {
	if m == nil {
		return
	}
	m.playbackStarted.WithLabelValues(channel).Inc()
}

// IncPlaybackFailed counts one failed playback start on channel.
func (m *Metrics) IncPlaybackFailed(channel string) {
	if m == nil {
		return
	}
	m.playbackFailed.WithLabelValues(channel).Inc()
}

// IncPlaybackSuppressed counts one duplicate play request on channel.
func (m *Metrics) IncPlaybackSuppressed(channel string) {
	if m == nil {
		return
	}
	m.playbackSuppressed.WithLabelValues(channel).Inc()
}

// IncRenderIterations counts one render loop iteration.
func (m *Metrics) IncRenderIterations() {
	if m == nil {
		return
	}
	m.renderIterations.Inc()
}

// SetSessionState records the numeric session state.
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.sessionState.Set(float64(state))
}

// IncReconnects counts one transport reconnect attempt.
func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

// IncRequests increments the request counter for route.
func (m *Metrics) IncRequests(route string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncStatusFailure counts one status handler failure for reason.
func (m *Metrics) IncStatusFailure(reason string) {
	if m == nil {
		return
	}
	m.statusFailures.WithLabelValues(reason).Inc()
}

// IncJournalDropped counts one journal write dropped on a full queue.
func (m *Metrics) IncJournalDropped() {
	if m == nil {
		return
	}
	m.journalDropped.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
