// Package metric holds the Prometheus collectors for the packet pipeline.
// All recording methods are safe on a nil *Metrics so components can run
// without a registry in tests.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fluidity"

// Metrics contains the pipeline counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	LinesRead        *prometheus.CounterVec
	LinesRejected    *prometheus.CounterVec
	PacketsPublished *prometheus.CounterVec
	TargetRejected   *prometheus.CounterVec
	TargetErrors     prometheus.Counter
	HubDropped       prometheus.Counter
	Subscribers      prometheus.Gauge
}

// New creates the metrics on a fresh registry that also carries the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "lines_read_total",
			Help:      "Raw lines read from devices",
		}, []string{"site", "collector"}),
		LinesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "lines_rejected_total",
			Help:      "Raw lines the parse strategy could not format",
		}, []string{"site", "collector"}),
		PacketsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "packets_total",
			Help:      "Packets sequenced and handed to the hub",
		}, []string{"site", "collector"}),
		TargetRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "target_rejected_total",
			Help:      "Dispatches skipped because the target failed validation",
		}, []string{"target"}),
		TargetErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "target_errors_total",
			Help:      "Target deliveries that failed",
		}),
		HubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Packets dropped for slow subscribers",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Connected client sessions",
		}),
	}
	m.registry.MustRegister(
		m.LinesRead, m.LinesRejected, m.PacketsPublished,
		m.TargetRejected, m.TargetErrors, m.HubDropped, m.Subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LineRead(site, collector string) {
	if m != nil {
		m.LinesRead.WithLabelValues(site, collector).Inc()
	}
}

func (m *Metrics) LineRejected(site, collector string) {
	if m != nil {
		m.LinesRejected.WithLabelValues(site, collector).Inc()
	}
}

func (m *Metrics) PacketPublished(site, collector string) {
	if m != nil {
		m.PacketsPublished.WithLabelValues(site, collector).Inc()
	}
}

func (m *Metrics) TargetRejectedFor(target string) {
	if m != nil {
		m.TargetRejected.WithLabelValues(target).Inc()
	}
}

func (m *Metrics) TargetError() {
	if m != nil {
		m.TargetErrors.Inc()
	}
}

func (m *Metrics) HubDrop() {
	if m != nil {
		m.HubDropped.Inc()
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}
