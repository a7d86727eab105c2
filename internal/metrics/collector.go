package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DurationBuckets suit local storage and API latencies, in seconds
var DurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Collector owns the engine's Prometheus registry. The Go runtime and
// process collectors are registered with it.
type Collector struct {
	registry *prometheus.Registry
	factory  promauto.Factory
}

// NewCollector creates a collector over a fresh registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Collector{
		registry: registry,
		factory:  promauto.With(registry),
	}
}

// RegisterCounter registers a counter family
func (c *Collector) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	return c.factory.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// RegisterGauge registers a gauge family
func (c *Collector) RegisterGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return c.factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// RegisterHistogram registers a histogram family; nil buckets select
// DurationBuckets
func (c *Collector) RegisterHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = DurationBuckets
	}
	return c.factory.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
}

// RegisterBuildInfo publishes a constant 1 labelled with the binary's version
func (c *Collector) RegisterBuildInfo(version, commit, goVersion string) {
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        MetricBuildInfo,
		Help:        "Build information of the running binary",
		ConstLabels: prometheus.Labels{"version": version, "commit": commit, "go_version": goVersion},
	}, func() float64 { return 1 })
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition formats
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
	})
}
