// Package metrics registers the process's Prometheus collectors: pool
// occupancy gauges and per-outcome lease counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codescord/broker/internal/protocol"
)

// Pool holds the gauges and counters the pool scheduler updates on every
// admission and completion.
type Pool struct {
	InFlight      prometheus.Gauge
	QueueDepth    prometheus.Gauge
	PortsInUse    prometheus.Gauge
	LeasesTotal   *prometheus.CounterVec
	LeaseDuration prometheus.Histogram
}

// NewPool creates and registers the pool's collectors.
func NewPool() *Pool {
	return &Pool{
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codescord_pool_in_flight",
			Help: "Number of leases currently holding a container slot.",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codescord_pool_queue_depth",
			Help: "Number of submissions waiting for admission.",
		}),
		PortsInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codescord_pool_ports_in_use",
			Help: "Number of host ports currently bound to a running container.",
		}),
		LeasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "codescord_pool_leases_total",
			Help: "Total completed leases by outcome.",
		}, []string{"outcome"}),
		LeaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "codescord_pool_lease_duration_seconds",
			Help:    "Wall-clock duration of a lease from admission to result.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Observe records a point-in-time snapshot of pool occupancy.
func (p *Pool) Observe(inFlight, queueDepth, portsInUse int) {
	p.InFlight.Set(float64(inFlight))
	p.QueueDepth.Set(float64(queueDepth))
	p.PortsInUse.Set(float64(portsInUse))
}

// RecordLease records one completed lease.
func (p *Pool) RecordLease(outcome protocol.Outcome, seconds float64) {
	p.LeasesTotal.WithLabelValues(outcome.String()).Inc()
	p.LeaseDuration.Observe(seconds)
}
