package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/lobbyd/internal/model"
)

const namespace = "lobby"

// Metrics holds the server's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connections     *prometheus.GaugeVec
	rejected        *prometheus.CounterVec
	events          *prometheus.CounterVec
}

// New creates the collectors and registers them along with Go runtime and process stats
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Protocol requests handled, labelled by request type and response code.",
		}, []string{"type", "code"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent handling protocol requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),

		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections, labelled by transport.",
		}, []string{"transport"}),

		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections refused because the server was full.",
		}, []string{"transport"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Audit events recorded, labelled by event type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.connections,
		m.rejected,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackSessions exposes the live session count as a gauge
func (m *Metrics) TrackSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Authenticated sessions.",
	}, func() float64 { return float64(count()) }))
}

// TrackRooms exposes the room count as a gauge
func (m *Metrics) TrackRooms(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Active rooms.",
	}, func() float64 { return float64(count()) }))
}

// ObserveRequest records one handled request
func (m *Metrics) ObserveRequest(reqType string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(reqType, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(reqType).Observe(elapsed.Seconds())
}

// ConnectionOpened increments the open connection gauge
func (m *Metrics) ConnectionOpened(transport string) {
	m.connections.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the open connection gauge
func (m *Metrics) ConnectionClosed(transport string) {
	m.connections.WithLabelValues(transport).Dec()
}

// ConnectionRejected counts a connection refused at capacity
func (m *Metrics) ConnectionRejected(transport string) {
	m.rejected.WithLabelValues(transport).Inc()
}

// ObserveEvent counts an audit event. Matches audit.Observer.
func (m *Metrics) ObserveEvent(e model.Event) {
	m.events.WithLabelValues(string(e.Type)).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
