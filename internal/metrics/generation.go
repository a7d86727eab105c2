package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics tracks calls to the text generation service
type GenerationMetrics struct {
	requests *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGenerationMetrics initializes generation metrics with the collector
func NewGenerationMetrics(collector *Collector) *GenerationMetrics {
	return &GenerationMetrics{
		requests: collector.RegisterCounter(
			MetricGenerationRequestsTotal,
			"Total schema generation requests by mode and outcome",
			[]string{LabelMode, LabelOutcome},
		),
		attempts: collector.RegisterCounter(
			MetricGenerationAttemptsTotal,
			"Total generation attempts by failure reason",
			[]string{LabelMode, LabelReason},
		),
		duration: collector.RegisterHistogram(
			MetricGenerationDuration,
			"End to end schema generation latency in seconds",
			[]string{LabelMode},
			[]float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		),
	}
}

// RecordRequest records a finished generate or refine call
func (m *GenerationMetrics) RecordRequest(mode string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, outcome(err)).Inc()
	m.duration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordAttempt records one attempt; reason is "ok" on success
func (m *GenerationMetrics) RecordAttempt(mode, reason string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(mode, reason).Inc()
}
