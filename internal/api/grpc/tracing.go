package grpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/formai/engine/internal/tracing"
)

const tracerName = "formai.grpc"

// tracingHandler opens a server span per call, continuing the caller's
// trace when the metadata carries one
func (s *Server) tracingHandler(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	service, method := splitFullMethod(info.FullMethod)

	return func(ctx context.Context, req interface{}) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = tracing.ExtractMetadata(ctx, md)

		ctx, span := otel.Tracer(tracerName).Start(ctx, info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.RPCSystemGRPC,
				semconv.RPCService(service),
				semconv.RPCMethod(method),
			),
		)
		defer span.End()

		if org := first(md, MetadataOrganization); org != "" {
			span.SetAttributes(attribute.String(tracing.AttrOrganization, org))
		}
		if formID := requestFormID(req); formID != "" {
			span.SetAttributes(attribute.String(tracing.AttrFormID, formID))
		}

		resp, err := handler(ctx, req)

		code := status.Code(err)
		span.SetAttributes(semconv.RPCGRPCStatusCodeKey.Int(int(code)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status.Convert(err).Message())
		}

		return resp, err
	}
}

// splitFullMethod splits "/formai.v1.FormService/GetForm" into its service
// and method
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "", fullMethod
	}
	return service, method
}

// requestFormID finds the form a request targets. Submission calls carry
// it as formId, form calls as id.
func requestFormID(req interface{}) string {
	in, ok := req.(*structpb.Struct)
	if !ok || in == nil {
		return ""
	}
	fields := in.GetFields()
	if v := fields["formId"].GetStringValue(); v != "" {
		return v
	}
	return fields["id"].GetStringValue()
}
