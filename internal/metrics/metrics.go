package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luckydraw"

// Metrics collects draw activity. It satisfies services.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	drawsStarted     prometheus.Counter
	roundsCommitted  prometheus.Counter
	winnersCommitted prometheus.Counter
	rejected         *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		drawsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_started_total",
			Help:      "Draw rounds started.",
		}),
		roundsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_committed_total",
			Help:      "Draw rounds whose winners were committed.",
		}),
		winnersCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_committed_total",
			Help:      "Winner records appended to ledgers.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_actions_total",
			Help:      "Operator actions rejected by validation, by action.",
		}, []string{"action"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Events currently held in memory.",
		}),
	}

	m.registry.MustRegister(
		m.drawsStarted,
		m.roundsCommitted,
		m.winnersCommitted,
		m.rejected,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// DrawStarted counts a draw entering the running state.
func (m *Metrics) DrawStarted() { m.drawsStarted.Inc() }

// RoundCommitted counts a committed round and its winners.
func (m *Metrics) RoundCommitted(winners int) {
	m.roundsCommitted.Inc()
	m.winnersCommitted.Add(float64(winners))
}

// ActionRejected counts an operator action refused by a draw session.
func (m *Metrics) ActionRejected(action string) { m.rejected.WithLabelValues(action).Inc() }

// ActiveSessions reports how many tenant sessions are live.
func (m *Metrics) ActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
