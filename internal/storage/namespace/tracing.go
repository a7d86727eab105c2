package namespace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formai/engine/internal/tracing"
)

const tracerName = "formai.namespace"

// startSpan starts a client span for a namespace operation
func startSpan(ctx context.Context, operation, namespace string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "namespace."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String(tracing.AttrNamespace, namespace),
		attribute.String(tracing.AttrOperation, operation),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

// endSpan records err on span, if any, and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
