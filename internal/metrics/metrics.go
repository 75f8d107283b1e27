// ABOUTME: Prometheus collectors for gateway activity
// ABOUTME: Registered on a private registry and served by the gateway's /metrics endpoint

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the gateway's collectors.
type Metrics struct {
	registry *prometheus.Registry

	// ConnectedSessions tracks currently registered live connections.
	ConnectedSessions prometheus.Gauge

	// MessagesSent counts persisted messages by kind (private, group).
	MessagesSent *prometheus.CounterVec

	// DeliveriesDropped counts events dropped because a connection's send
	// buffer was full.
	DeliveriesDropped prometheus.Counter

	// ClaimAttempts counts conversation claim attempts by outcome (won, lost).
	ClaimAttempts *prometheus.CounterVec
}

// New creates and registers the gateway collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_gateway_connected_sessions",
			Help: "Number of currently registered live connections.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_gateway_messages_sent_total",
			Help: "Messages persisted, by kind.",
		}, []string{"kind"}),
		DeliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_gateway_deliveries_dropped_total",
			Help: "Events dropped because a connection send buffer was full.",
		}),
		ClaimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_gateway_claim_attempts_total",
			Help: "Conversation claim attempts, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.ConnectedSessions,
		m.MessagesSent,
		m.DeliveriesDropped,
		m.ClaimAttempts,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
