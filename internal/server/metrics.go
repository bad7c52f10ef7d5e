package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"counterbridge/internal/chain"
)

type metricsRegistry struct {
	registry        *prometheus.Registry
	readsTotal      *prometheus.CounterVec
	writesTotal     *prometheus.CounterVec
	replaysTotal    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	confirmDuration *prometheus.HistogramVec
}

func newMetricsRegistry() *metricsRegistry {
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counterbridge_reads_total",
		Help: "Counter value reads by result",
	}, []string{"result"})

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counterbridge_writes_total",
		Help: "Counter write requests by operation and outcome",
	}, []string{"op", "result"})

	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counterbridge_idempotent_replays_total",
		Help: "Write responses served from the idempotency store",
	}, []string{"op"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counterbridge_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	confirm := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "counterbridge_confirmation_seconds",
		Help:    "Time from broadcast to receipt",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300},
	}, []string{"op"})

	r := prometheus.NewRegistry()
	r.MustRegister(reads, writes, replays, requests, confirm)

	return &metricsRegistry{
		registry:        r,
		readsTotal:      reads,
		writesTotal:     writes,
		replaysTotal:    replays,
		requestsTotal:   requests,
		confirmDuration: confirm,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) ObserveRead(result string) {
	m.readsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) ObserveWrite(op chain.Operation, result string) {
	m.incWrite(op, result)
}

func (m *metricsRegistry) ObserveConfirmation(op chain.Operation, elapsed time.Duration) {
	m.confirmDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

func (m *metricsRegistry) incWrite(op chain.Operation, result string) {
	m.writesTotal.WithLabelValues(string(op), result).Inc()
}

func (m *metricsRegistry) incReplay(op chain.Operation) {
	m.replaysTotal.WithLabelValues(string(op)).Inc()
}

func (m *metricsRegistry) incRequest(route string, status int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
