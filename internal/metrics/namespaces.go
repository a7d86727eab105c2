package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NamespaceMetrics tracks per-form storage namespace metrics
type NamespaceMetrics struct {
	provisioned   *prometheus.CounterVec
	openDBs       *prometheus.GaugeVec
	purged        *prometheus.CounterVec
	operations    *prometheus.CounterVec
	operationTime *prometheus.HistogramVec
}

// NewNamespaceMetrics initializes namespace metrics with the collector
func NewNamespaceMetrics(collector *Collector) *NamespaceMetrics {
	return &NamespaceMetrics{
		provisioned: collector.RegisterCounter(
			MetricNamespacesProvisioned,
			"Total number of record shape definitions",
			nil,
		),
		openDBs: collector.RegisterGauge(
			MetricNamespaceOpenDBs,
			"Number of namespace databases currently open",
			nil,
		),
		purged: collector.RegisterCounter(
			MetricNamespacePurgedRecords,
			"Total number of test records purged",
			nil,
		),
		operations: collector.RegisterCounter(
			MetricNamespaceOperationTotal,
			"Total namespace record operations",
			[]string{LabelOperation, LabelOutcome},
		),
		operationTime: collector.RegisterHistogram(
			MetricNamespaceOpDuration,
			"Duration of namespace record operations in seconds",
			[]string{LabelOperation},
			[]float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		),
	}
}

// RecordProvisioned increments the record shape counter
func (m *NamespaceMetrics) RecordProvisioned() {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues().Inc()
}

// SetOpenDBs sets the open database gauge
func (m *NamespaceMetrics) SetOpenDBs(n int) {
	if m == nil {
		return
	}
	m.openDBs.WithLabelValues().Set(float64(n))
}

// RecordPurge adds purged test records
func (m *NamespaceMetrics) RecordPurge(count int) {
	if m == nil {
		return
	}
	m.purged.WithLabelValues().Add(float64(count))
}

// RecordOperation records a record-level operation
func (m *NamespaceMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome(err)).Inc()
	m.operationTime.WithLabelValues(operation).Observe(duration.Seconds())
}
