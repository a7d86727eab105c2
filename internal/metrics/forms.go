package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FormMetrics tracks form lifecycle metrics
type FormMetrics struct {
	formsCreated     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	schemaUpdates    *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
}

// NewFormMetrics initializes form metrics with the collector
func NewFormMetrics(collector *Collector) *FormMetrics {
	return &FormMetrics{
		formsCreated: collector.RegisterCounter(
			MetricFormsCreatedTotal,
			"Total number of forms created",
			[]string{LabelOrganization},
		),
		transitions: collector.RegisterCounter(
			MetricFormTransitionsTotal,
			"Total number of form status transitions",
			[]string{LabelTransition},
		),
		schemaUpdates: collector.RegisterCounter(
			MetricFormSchemaUpdates,
			"Total number of schema versions appended",
			[]string{LabelOrganization},
		),
		operationLatency: collector.RegisterHistogram(
			MetricFormOperationDuration,
			"Duration of form lifecycle operations in seconds",
			[]string{LabelOperation, LabelOutcome},
			prometheus.DefBuckets,
		),
	}
}

// RecordCreated increments the created counter
func (m *FormMetrics) RecordCreated(organization string) {
	if m == nil {
		return
	}
	m.formsCreated.WithLabelValues(organization).Inc()
}

// RecordTransition records a status change such as "draft->published"
func (m *FormMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from + "->" + to).Inc()
}

// RecordSchemaUpdate increments the schema version counter
func (m *FormMetrics) RecordSchemaUpdate(organization string) {
	if m == nil {
		return
	}
	m.schemaUpdates.WithLabelValues(organization).Inc()
}

// RecordOperation observes the latency of a lifecycle operation
func (m *FormMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation, outcome(err)).Observe(duration.Seconds())
}
