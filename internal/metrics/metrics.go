// Package metrics exposes the ambient observability surface for the
// IPC and bridge cores: counters and gauges registered against a
// private prometheus.Registry and served over /metrics alongside the
// control port. Metrics are additive instrumentation, not a
// replacement for the "logging" contract-only collaborator named in
// the core's scope.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the IPC and bridge cores update.
type Metrics struct {
	Registry *prometheus.Registry

	ProducersAccepted prometheus.Counter
	VerifyFailures    prometheus.Counter
	Resizes           prometheus.Counter
	ReapKills         prometheus.Counter
	OutboundRetries   prometheus.Counter
	ActiveProducers   prometheus.Gauge
}

// New registers and returns a fresh Metrics set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ProducersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "producers_accepted_total",
			Help: "Producers that completed the connection listener/verifier handshake.",
		}),
		VerifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verify_failures_total",
			Help: "Producer connections destroyed during key verification.",
		}),
		Resizes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resizes_total",
			Help: "Shared-page resizes that performed an actual remap (threshold short-circuits excluded).",
		}),
		ReapKills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reap_kills_total",
			Help: "Child processes the nanny reaper had to KILL unconditionally.",
		}),
		OutboundRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbound_retries_total",
			Help: "Outbound connection attempts that failed and were retried with backoff.",
		}),
		ActiveProducers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_producers",
			Help: "Producer records currently alive.",
		}),
	}
	reg.MustRegister(
		m.ProducersAccepted,
		m.VerifyFailures,
		m.Resizes,
		m.ReapKills,
		m.OutboundRetries,
		m.ActiveProducers,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this Metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
