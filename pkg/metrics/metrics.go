// Package metrics exposes Prometheus collectors for transfers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Send results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
)

// Cleanup kinds.
const (
	CleanupImmediate = "immediate"
	CleanupScheduled = "scheduled"
	CleanupTeardown  = "teardown"
	CleanupForced    = "forced"
	CleanupDisposed  = "disposed"
)

// Collector counts transfers per mode. A nil *Collector is valid and records nothing.
type Collector struct {
	sends    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	cleanups *prometheus.CounterVec
}

// NewCollector builds the transfer counters under namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Send attempts by transport mode and result.",
		}, []string{"mode", "result"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Payload bytes handed off by transport mode.",
		}, []string{"mode"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_total",
			Help:      "Resource releases by transport mode and kind.",
		}, []string{"mode", "kind"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.sends.Describe(ch)
	c.bytes.Describe(ch)
	c.cleanups.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.sends.Collect(ch)
	c.bytes.Collect(ch)
	c.cleanups.Collect(ch)
}

// ObserveSend records one send attempt.
func (c *Collector) ObserveSend(mode string, ok bool, n int) {
	if c == nil {
		return
	}
	if !ok {
		c.sends.WithLabelValues(mode, ResultRejected).Inc()
		return
	}
	c.sends.WithLabelValues(mode, ResultOK).Inc()
	c.bytes.WithLabelValues(mode).Add(float64(n))
}

// ObserveCleanup records one release of kind.
func (c *Collector) ObserveCleanup(mode, kind string) {
	if c == nil {
		return
	}
	c.cleanups.WithLabelValues(mode, kind).Inc()
}

// SegmentSource reports live shared-memory bookkeeping.
type SegmentSource interface {
	ActiveCount() int
	PendingCleanupCount() int
}

// NewSegmentGauges returns gauges reading src at scrape time.
func NewSegmentGauges(namespace string, src SegmentSource) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mmap_active_segments",
			Help:      "Shared-memory segments currently open.",
		}, func() float64 { return float64(src.ActiveCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mmap_pending_cleanups",
			Help:      "Segments scheduled for teardown but not yet destroyed.",
		}, func() float64 { return float64(src.PendingCleanupCount()) }),
	}
}
