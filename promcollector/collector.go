// Package promcollector exports blockpool metrics to Prometheus.
//
//	c := promcollector.New(promcollector.WithNamespace("sim"))
//	p := blockpool.New[Particle](blockpool.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.Handler())
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/blockpool"
)

// Collector implements blockpool.MetricsCollector with Prometheus metrics.
type Collector struct {
	emplaceLatency *prometheus.HistogramVec
	capacity       prometheus.Gauge
	blocks         prometheus.Gauge
	destroys       *prometheus.CounterVec
	drains         prometheus.Counter
	drained        prometheus.Counter
	drainLatency   prometheus.Histogram
	upgrades       *prometheus.CounterVec
}

var _ blockpool.MetricsCollector = (*Collector)(nil)

type options struct {
	namespace  string
	registerer prometheus.Registerer
	labels     prometheus.Labels
}

// Option configures a Collector.
type Option func(*options)

// WithNamespace prefixes every metric name. The default is "blockpool".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithRegisterer registers the metrics with r instead of the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithConstLabels attaches labels to every metric, e.g. to tell pools apart.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.labels = labels
	}
}

// New creates and registers a Collector. It panics if registration fails.
func New(opts ...Option) *Collector {
	o := options{
		namespace:  "blockpool",
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		emplaceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "emplace_latency_seconds",
			Help:        "Latency of emplace calls",
			Buckets:     prometheus.ExponentialBuckets(1e-8, 4, 12),
			ConstLabels: o.labels,
		}, []string{"status"}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "capacity_slots",
			Help:        "Number of slots in all blocks",
			ConstLabels: o.labels,
		}),
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "blocks",
			Help:        "Number of allocated blocks",
			ConstLabels: o.labels,
		}),
		destroys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "destructions_total",
			Help:        "Objects destroyed",
			ConstLabels: o.labels,
		}, []string{"mode", "status"}),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "drains_total",
			Help:        "Deferred destruction queue drains",
			ConstLabels: o.labels,
		}),
		drained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "drained_entries_total",
			Help:        "Deferred destruction entries processed",
			ConstLabels: o.labels,
		}),
		drainLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "drain_latency_seconds",
			Help:        "Latency of deferred destruction drains",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: o.labels,
		}),
		upgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "weak_upgrades_total",
			Help:        "Weak to strong upgrade attempts",
			ConstLabels: o.labels,
		}, []string{"result"}),
	}

	o.registerer.MustRegister(
		c.emplaceLatency,
		c.capacity,
		c.blocks,
		c.destroys,
		c.drains,
		c.drained,
		c.drainLatency,
		c.upgrades,
	)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordEmplace implements blockpool.MetricsCollector.
func (c *Collector) RecordEmplace(d time.Duration, err error) {
	c.emplaceLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

// RecordGrow implements blockpool.MetricsCollector.
func (c *Collector) RecordGrow(blocks, capacity int) {
	c.blocks.Set(float64(blocks))
	c.capacity.Set(float64(capacity))
}

// RecordDestroy implements blockpool.MetricsCollector.
func (c *Collector) RecordDestroy(deferred bool, err error) {
	mode := "immediate"
	if deferred {
		mode = "deferred"
	}
	c.destroys.WithLabelValues(mode, status(err)).Inc()
}

// RecordDrain implements blockpool.MetricsCollector.
func (c *Collector) RecordDrain(entries int, d time.Duration) {
	c.drains.Inc()
	c.drained.Add(float64(entries))
	c.drainLatency.Observe(d.Seconds())
}

// RecordUpgrade implements blockpool.MetricsCollector.
func (c *Collector) RecordUpgrade(ok bool) {
	result := "expired"
	if ok {
		result = "ok"
	}
	c.upgrades.WithLabelValues(result).Inc()
}
