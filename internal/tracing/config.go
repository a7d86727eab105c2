package tracing

// TracingConfig holds configuration for OpenTelemetry tracing
type TracingConfig struct {
	// Enabled enables/disables tracing
	Enabled bool

	// ServiceName is the service name for traces
	ServiceName string

	// ServiceVersion is the service version
	ServiceVersion string

	// Endpoint is the OTLP endpoint URL
	Endpoint string

	// Insecure skips TLS verification
	Insecure bool

	// Headers contains additional headers for OTLP export
	Headers map[string]string

	// ExporterType specifies the exporter type: "grpc" or "http"
	ExporterType string

	// SamplingStrategy is "always", "never", "ratio" or "rate"
	SamplingStrategy string

	// SamplingRatio is the probability used by the "ratio" strategy
	SamplingRatio float64

	// SamplingRate is the desired traces per second for the "rate" strategy
	SamplingRate float64
}

// baselineRequestRate is the request rate the "rate" strategy is scaled against
const baselineRequestRate = 100.0

// DefaultTracingConfig returns a default tracing configuration
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:          false,
		ServiceName:      "formai",
		ServiceVersion:   "0.1.0",
		Headers:          make(map[string]string),
		ExporterType:     "grpc",
		SamplingStrategy: "always",
		SamplingRatio:    1.0,
	}
}

// samplingProbability returns the head sampling probability for the config
func (c TracingConfig) samplingProbability() float64 {
	switch c.SamplingStrategy {
	case "never":
		return 0
	case "ratio":
		return clamp(c.SamplingRatio)
	case "rate":
		return clamp(c.SamplingRate / baselineRequestRate)
	default:
		return 1
	}
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
