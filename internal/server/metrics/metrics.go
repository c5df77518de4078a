// Package metrics holds the Prometheus collectors of the auth server. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophauth"

// Outcomes of an auth flow.
const (
	OutcomeOK           = "ok"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	hashing  prometheus.Histogram
}

// New registers the collectors on a dedicated registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Auth flow invocations by flow and outcome.",
		}, []string{"flow", "outcome"}),
		hashing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "password_hash_seconds",
			Help:      "Time spent deriving Argon2id password digests.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	reg.MustRegister(
		m.requests,
		m.hashing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveFlow(flow, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) ObserveHash(d time.Duration) {
	if m == nil {
		return
	}
	m.hashing.Observe(d.Seconds())
}
