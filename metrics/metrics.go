package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// GetRegistry returns the process-wide prometheus registry used by all
// components. It is created lazily with the standard Go runtime and
// process collectors attached.
func GetRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Histogram bucket presets shared by components.
var (
	// SizeBuckets covers payload sizes from 64B to 16MB.
	SizeBuckets = prometheus.ExponentialBuckets(64, 4, 10)

	// CountBuckets covers small per-record counts (fields, rows).
	CountBuckets = prometheus.ExponentialBuckets(1, 2, 12)

	// DurationBuckets covers decode latencies from 10us to ~10s.
	DurationBuckets = prometheus.ExponentialBuckets(0.00001, 4, 11)
)

// ComponentRegistry namespaces metrics for a single component and
// registers them on the shared registry.
type ComponentRegistry struct {
	namespace string
	subsystem string
}

// NewComponentRegistry creates a registry view for one component.
func NewComponentRegistry(namespace, subsystem string) *ComponentRegistry {
	return &ComponentRegistry{namespace: namespace, subsystem: subsystem}
}

func (c *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewCounter(opts)
	GetRegistry().MustRegister(m)
	return m
}

func (c *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewCounterVec(opts, labels)
	GetRegistry().MustRegister(m)
	return m
}

func (c *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewGauge(opts)
	GetRegistry().MustRegister(m)
	return m
}

func (c *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewGaugeVec(opts, labels)
	GetRegistry().MustRegister(m)
	return m
}

func (c *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewHistogram(opts)
	GetRegistry().MustRegister(m)
	return m
}

func (c *ComponentRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = c.namespace
	opts.Subsystem = c.subsystem
	m := prometheus.NewHistogramVec(opts, labels)
	GetRegistry().MustRegister(m)
	return m
}
