package metrics

import (
	"time"

	"github.com/formai/engine/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

// NodeMetrics tracks node-level API metrics
type NodeMetrics struct {
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
}

// NewNodeMetrics initializes node-level metrics with the collector
func NewNodeMetrics(collector *Collector) *NodeMetrics {
	return &NodeMetrics{
		apiRequestsTotal: collector.RegisterCounter(
			MetricAPIRequestsTotal,
			"Total HTTP/gRPC requests by method, endpoint, and status",
			[]string{LabelMethod, LabelEndpoint, LabelStatus},
		),
		apiRequestDuration: collector.RegisterHistogram(
			MetricAPIRequestDuration,
			"API request latency in seconds",
			[]string{LabelMethod, LabelEndpoint},
			prometheus.DefBuckets,
		),
	}
}

// RecordAPIRequest records an API request
func (m *NodeMetrics) RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.apiRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.apiRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// Set bundles every metrics family of the engine
type Set struct {
	Collector   *Collector
	Node        *NodeMetrics
	Forms       *FormMetrics
	Submissions *SubmissionMetrics
	Namespaces  *NamespaceMetrics
	Generation  *GenerationMetrics
}

// NewSet registers all metric families on a fresh collector
func NewSet() *Set {
	c := NewCollector()
	info := version.Get()
	c.RegisterBuildInfo(info.Version, info.GitCommit, info.GoVersion)
	return &Set{
		Collector:   c,
		Node:        NewNodeMetrics(c),
		Forms:       NewFormMetrics(c),
		Submissions: NewSubmissionMetrics(c),
		Namespaces:  NewNamespaceMetrics(c),
		Generation:  NewGenerationMetrics(c),
	}
}
