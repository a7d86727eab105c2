package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/formai/engine/internal/api/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys set by the authenticating gateway
const (
	MetadataUserID       = "x-user-id"
	MetadataOrganization = "x-organization-id"
	MetadataGroups       = "x-user-groups"
)

// unaryInterceptorChain creates a chain of unary interceptors
func (s *Server) unaryInterceptorChain() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// tracing, logging and metrics see the converted status
		inner := s.loggingInterceptor(info, s.errorInterceptor(s.identityInterceptor(handler)))
		return s.tracingHandler(info, inner)(ctx, req)
	}
}

// loggingInterceptor logs requests and records their metrics
func (s *Server) loggingInterceptor(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		start := time.Now()
		log := s.log.With().Str("method", info.FullMethod).Logger()

		log.Debug().Msg("gRPC request started")

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		code := status.Code(err)
		s.metrics.RecordAPIRequest("grpc", info.FullMethod, code.String(), duration)

		if err != nil {
			log.Warn().Err(err).Str("code", code.String()).Dur("duration", duration).Msg("gRPC request failed")
		} else {
			log.Info().Dur("duration", duration).Msg("gRPC request completed")
		}

		return resp, err
	}
}

// identityInterceptor reads the caller identity from trusted metadata
func (s *Server) identityInterceptor(handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		if id := identityFromMetadata(ctx); id != nil {
			ctx = auth.WithIdentity(ctx, id)
		}
		return handler(ctx, req)
	}
}

// errorInterceptor handles errors and converts them to gRPC status
func (s *Server) errorInterceptor(handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, convertToGRPCStatus(err)
		}
		return resp, nil
	}
}

func identityFromMetadata(ctx context.Context) *auth.Identity {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	userID := first(md, MetadataUserID)
	if userID == "" {
		return nil
	}
	id := &auth.Identity{
		UserID:       userID,
		Organization: first(md, MetadataOrganization),
	}
	for _, raw := range md.Get(MetadataGroups) {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				id.Groups = append(id.Groups, g)
			}
		}
	}
	return id
}

func first(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
