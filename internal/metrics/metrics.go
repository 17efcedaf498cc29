package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesSent      *prometheus.CounterVec
	firstContactDrops prometheus.Counter
	polls             *prometheus.CounterVec
	wsConnections     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clubhouse",
			Name:      "messages_sent_total",
			Help:      "Messages appended to the ledger, by kind.",
		}, []string{"kind"}),
		firstContactDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clubhouse",
			Name:      "first_contact_rejections_total",
			Help:      "Private sends rejected by the first-contact limit.",
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clubhouse",
			Name:      "polls_total",
			Help:      "Poll requests served, by scope and outcome.",
		}, []string{"scope", "outcome"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clubhouse",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesSent, m.firstContactDrops, m.polls, m.wsConnections,
	)
	return m
}

// Handler returns an http.Handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageSent(kind string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FirstContactRejected() {
	if m == nil {
		return
	}
	m.firstContactDrops.Inc()
}

func (m *Metrics) Poll(scope, outcome string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
