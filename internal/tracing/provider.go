package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/formai/engine/internal/logger"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 5 * time.Second

// Provider owns the process tracer provider. A disabled provider hands out
// no-op tracers and installs nothing globally.
type Provider struct {
	tp         *sdktrace.TracerProvider
	config     TracingConfig
	instanceID string
	log        zerolog.Logger
}

// NewProvider builds the OTLP pipeline described by config and installs it
// as the global tracer provider and propagator
func NewProvider(ctx context.Context, config TracingConfig) (*Provider, error) {
	p := &Provider{
		config:     config,
		instanceID: uuid.NewString(),
		log:        logger.WithComponent("tracing"),
	}
	if !config.Enabled {
		return p, nil
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.ServiceInstanceID(p.instanceID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config)),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.log.Info().
		Str("service_name", config.ServiceName).
		Str("instance_id", p.instanceID).
		Str("endpoint", config.Endpoint).
		Str("exporter", config.ExporterType).
		Float64("sampling_probability", config.samplingProbability()).
		Msg("Tracing provider initialized")

	return p, nil
}

// newExporter creates the OTLP span exporter for config.ExporterType
func newExporter(ctx context.Context, config TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(config.ExporterType) {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(config.Headers))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP OTLP exporter: %w", err)
		}
		return exporter, nil
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC OTLP exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", config.ExporterType)
	}
}

// newSampler honors the parent's decision and applies the configured
// probability to root spans
func newSampler(config TracingConfig) sdktrace.Sampler {
	p := config.samplingProbability()
	switch {
	case p >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case p <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p))
	}
}

// Tracer returns a named tracer, a no-op one when tracing is disabled
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// InstanceID identifies this process in exported resources
func (p *Provider) InstanceID() string {
	return p.instanceID
}

// Enabled reports whether spans are exported
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown flushes pending spans. Without a deadline on ctx it waits at
// most five seconds.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	p.log.Info().Msg("Tracing provider shut down")
	return nil
}
