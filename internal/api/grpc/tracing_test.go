package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/formai/engine/internal/tracing"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/formai.v1.FormService/GetForm")
	assert.Equal(t, "formai.v1.FormService", service)
	assert.Equal(t, "GetForm", method)

	service, method = splitFullMethod("Ping")
	assert.Equal(t, "", service)
	assert.Equal(t, "Ping", method)
}

func TestRequestFormID(t *testing.T) {
	submission, err := structpb.NewStruct(map[string]any{"formId": "form-1", "id": "rec-1"})
	require.NoError(t, err)
	assert.Equal(t, "form-1", requestFormID(submission))

	form, err := structpb.NewStruct(map[string]any{"id": "form-2"})
	require.NoError(t, err)
	assert.Equal(t, "form-2", requestFormID(form))

	assert.Equal(t, "", requestFormID("not a struct"))
	assert.Equal(t, "", requestFormID((*structpb.Struct)(nil)))
}

func TestTracingHandler_RecordsSpan(t *testing.T) {
	recorder := recordSpans(t)
	s := &Server{}

	info := &grpc.UnaryServerInfo{FullMethod: "/formai.v1.FormService/SubmitForm"}
	handler := s.tracingHandler(info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "form is closed")
	})

	req, err := structpb.NewStruct(map[string]any{"formId": "form-9"})
	require.NoError(t, err)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataOrganization, "org-1"))

	_, err = handler(ctx, req)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "/formai.v1.FormService/SubmitForm", span.Name())
	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Equal(t, "form is closed", span.Status().Description)

	attrs := spanAttrs(span)
	assert.Equal(t, "SubmitForm", attrs["rpc.method"].AsString())
	assert.Equal(t, "formai.v1.FormService", attrs["rpc.service"].AsString())
	assert.Equal(t, int64(codes.FailedPrecondition), attrs["rpc.grpc.status_code"].AsInt64())
	assert.Equal(t, "form-9", attrs[tracing.AttrFormID].AsString())
	assert.Equal(t, "org-1", attrs[tracing.AttrOrganization].AsString())
}
