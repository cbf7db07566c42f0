// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Question outcomes.
const (
	QuestionServed    = "served"
	QuestionExhausted = "exhausted"
	QuestionFailed    = "error"
)

// Reward outcomes.
const (
	RewardStored  = "stored"
	RewardLevelUp = "level_up"
	RewardEndGame = "end_game"
	RewardFailed  = "error"
)

// Metrics owns its registry so several servers (or tests) can coexist.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.HistogramVec
	questions *prometheus.CounterVec
	rewards   *prometheus.CounterVec
	sockets   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trivia",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "questions_total",
			Help:      "Question requests by outcome.",
		}, []string{"outcome"}),
		rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "rewards_total",
			Help:      "Reward submissions by outcome.",
		}, []string{"outcome"}),
		sockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trivia",
			Name:      "play_sockets",
			Help:      "Open play websocket connections.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.questions, m.rewards, m.sockets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) Question(outcome string) {
	m.questions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reward(outcome string) {
	m.rewards.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SocketOpened() { m.sockets.Inc() }

func (m *Metrics) SocketClosed() { m.sockets.Dec() }
