package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SubmissionMetrics tracks submission ingestion metrics
type SubmissionMetrics struct {
	accepted       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	deleted        *prometheus.CounterVec
	exports        *prometheus.CounterVec
	createDuration *prometheus.HistogramVec
}

// NewSubmissionMetrics initializes submission metrics with the collector
func NewSubmissionMetrics(collector *Collector) *SubmissionMetrics {
	return &SubmissionMetrics{
		accepted: collector.RegisterCounter(
			MetricSubmissionsTotal,
			"Total number of accepted submissions",
			[]string{LabelMode},
		),
		rejected: collector.RegisterCounter(
			MetricSubmissionsRejectedTotal,
			"Total number of rejected submissions by reason",
			[]string{LabelReason},
		),
		deleted: collector.RegisterCounter(
			MetricSubmissionsDeletedTotal,
			"Total number of deleted submissions",
			nil,
		),
		exports: collector.RegisterCounter(
			MetricSubmissionExportsTotal,
			"Total number of CSV exports",
			[]string{LabelOutcome},
		),
		createDuration: collector.RegisterHistogram(
			MetricSubmissionCreateDuration,
			"Duration of submission ingestion in seconds",
			[]string{LabelOutcome},
			prometheus.DefBuckets,
		),
	}
}

// RecordAccepted records a stored submission
func (m *SubmissionMetrics) RecordAccepted(isTest bool, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "live"
	if isTest {
		mode = "test"
	}
	m.accepted.WithLabelValues(mode).Inc()
	m.createDuration.WithLabelValues(OutcomeSuccess).Observe(duration.Seconds())
}

// RecordRejected records a refused submission ("closed", "invalid", "error")
func (m *SubmissionMetrics) RecordRejected(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
	m.createDuration.WithLabelValues(OutcomeError).Observe(duration.Seconds())
}

// RecordDeleted increments the deleted counter
func (m *SubmissionMetrics) RecordDeleted() {
	if m == nil {
		return
	}
	m.deleted.WithLabelValues().Inc()
}

// RecordExport records a CSV export
func (m *SubmissionMetrics) RecordExport(err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome(err)).Inc()
}
