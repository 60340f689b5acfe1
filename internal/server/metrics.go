package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so tests can run servers side by side without collector clashes.
type Metrics struct {
	registry *prometheus.Registry

	GamesCreated      prometheus.Counter
	Actions           *prometheus.CounterVec
	Subscribers       prometheus.Gauge
	BroadcastsDropped prometheus.Counter
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marbleguess_games_created_total",
			Help: "Games created since process start.",
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marbleguess_actions_total",
			Help: "Engine operations by action and outcome.",
		}, []string{"action", "outcome"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marbleguess_subscribers",
			Help: "Currently connected broadcast subscribers.",
		}),
		BroadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marbleguess_broadcasts_dropped_total",
			Help: "Snapshots dropped because a subscriber's buffer was full.",
		}),
	}

	reg.MustRegister(m.GamesCreated, m.Actions, m.Subscribers, m.BroadcastsDropped)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAction records the outcome of one engine operation.
func (m *Metrics) ObserveAction(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Actions.WithLabelValues(action, outcome).Inc()
}
