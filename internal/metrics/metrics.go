// Package metrics exposes the cardroom's Prometheus collectors. Metrics
// implements both engine.Monitor and the gateway's connection stats, so one
// instance is wired into both.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfelt/cardroom/internal/engine"
)

// Metrics owns a private registry so tests never collide on the global one.
type Metrics struct {
	engine.NullMonitor

	registry *prometheus.Registry

	handsStarted *prometheus.CounterVec
	handsEnded   *prometheus.CounterVec
	actions      *prometheus.CounterVec
	timerFires   *prometheus.CounterVec
	kicks        *prometheus.CounterVec
	handsRunning *prometheus.GaugeVec
	connections  prometheus.Gauge
}

// New builds the collectors and registers them together with the standard
// process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		handsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "hands_started_total",
			Help:      "Hands dealt, by table.",
		}, []string{"table_id"}),
		handsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "hands_ended_total",
			Help:      "Hands finished, by table and end reason.",
		}, []string{"table_id", "reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "actions_total",
			Help:      "Betting actions applied, by table, action and source.",
		}, []string{"table_id", "action", "source"}),
		timerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "turn_timeouts_total",
			Help:      "Turn clocks that expired and acted for the player.",
		}, []string{"table_id"}),
		kicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "away_kicks_total",
			Help:      "Players removed after repeated timeouts.",
		}, []string{"table_id"}),
		handsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cardroom",
			Name:      "hands_running",
			Help:      "Hands currently in flight, by table.",
		}, []string{"table_id"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardroom",
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		m.handsStarted, m.handsEnded, m.actions, m.timerFires, m.kicks,
		m.handsRunning, m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HandStarted(tableID, _ string, _ int) {
	m.handsStarted.WithLabelValues(tableID).Inc()
	m.handsRunning.WithLabelValues(tableID).Inc()
}

func (m *Metrics) HandEnded(end engine.HandEnd) {
	m.handsEnded.WithLabelValues(end.TableID, end.Reason).Inc()
	m.handsRunning.WithLabelValues(end.TableID).Dec()
}

func (m *Metrics) ActionApplied(tableID string, action engine.Action, timeout bool) {
	source := "player"
	if timeout {
		source = "timeout"
	}
	m.actions.WithLabelValues(tableID, string(action), source).Inc()
}

func (m *Metrics) TimerFired(tableID string) {
	m.timerFires.WithLabelValues(tableID).Inc()
}

func (m *Metrics) PlayerKicked(tableID, _ string) {
	m.kicks.WithLabelValues(tableID).Inc()
}

func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }
