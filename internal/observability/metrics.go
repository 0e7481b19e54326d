package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics groups all Prometheus instruments used by the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveStreams  prometheus.Gauge
	StreamEvents   *prometheus.CounterVec
	DroppedFrames  prometheus.Counter
	StreamErrors   *prometheus.CounterVec
	Streams        *prometheus.CounterVec
	StreamDuration prometheus.Histogram
	Snapshots      prometheus.Counter
	AgentRequests  *prometheus.CounterVec
	FeedClients    prometheus.Gauge
	FeedErrors     *prometheus.CounterVec
}

// NewMetrics registers the instruments on a fresh registry so several
// instances can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of progress streams currently open.",
		}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Decoded progress events by type.",
		}, []string{"type"}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_frames_total",
			Help:      "Frames that failed to decode and were skipped.",
		}),
		StreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Transport errors by kind.",
		}, []string{"kind"}),
		Streams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Finished streams by outcome.",
		}, []string{"outcome"}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time from request to end of stream.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		Snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_snapshots_total",
			Help:      "Graph snapshots published to the renderer feed.",
		}),
		AgentRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Agents API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "WebSocket clients connected to the graph feed.",
		}),
		FeedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Graph feed WebSocket failures by stage.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.DroppedFrames.Inc()
}

func (m *Metrics) ObserveStreamError(kind string) {
	if m == nil {
		return
	}
	m.StreamErrors.WithLabelValues(kind).Inc()
}

// StreamStarted marks a stream as open and returns a func that records its
// outcome and duration.
func (m *Metrics) StreamStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.ActiveStreams.Inc()
	return func(outcome string) {
		m.ActiveStreams.Dec()
		m.Streams.WithLabelValues(outcome).Inc()
		m.StreamDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveSnapshot() {
	if m == nil {
		return
	}
	m.Snapshots.Inc()
}

func (m *Metrics) ObserveAgentRequest(endpoint string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AgentRequests.WithLabelValues(endpoint, outcome).Inc()
}

// FeedConnected counts a feed client and returns the func that uncounts it.
func (m *Metrics) FeedConnected() func() {
	if m == nil {
		return func() {}
	}
	m.FeedClients.Inc()
	return m.FeedClients.Dec
}

func (m *Metrics) ObserveFeedError(stage string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
