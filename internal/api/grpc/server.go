package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

const (
	// healthInterval is how often readiness is republished to health clients
	healthInterval = 5 * time.Second

	// maxMessageSize bounds a form document or submission payload
	maxMessageSize = 8 << 20

	keepaliveTime    = 2 * time.Minute
	keepaliveTimeout = 20 * time.Second
)

// Server represents a gRPC server
type Server struct {
	grpcServer *grpc.Server
	addr       string
	listenAddr string
	log        zerolog.Logger
	metrics    *metrics.NodeMetrics
	ready      bool
	mu         sync.RWMutex
	healthSvc  *HealthService
	formSvc    *FormService
	cancel     context.CancelFunc
}

// NewServer creates a new gRPC server; nodeMetrics may be nil
func NewServer(addr string, storage Readiness, formSvc *FormService, nodeMetrics *metrics.NodeMetrics) *Server {
	s := &Server{
		addr:      addr,
		log:       logger.WithComponent("grpc"),
		metrics:   nodeMetrics,
		healthSvc: NewHealthService(storage),
		formSvc:   formSvc,
	}

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptorChain()),
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    keepaliveTime,
			Timeout: keepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	s.registerServices()

	return s
}

// Start starts the gRPC server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listenAddr = listener.Addr().String()

	s.log.Info().Str("addr", s.listenAddr).Msg("Starting gRPC server")

	s.healthSvc.refresh()
	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.healthSvc.watch(watchCtx, healthInterval)

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	s.ready = true
	s.log.Info().Str("addr", s.listenAddr).Msg("gRPC server started")

	return nil
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping gRPC server")

	s.cancel()
	s.healthSvc.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	var err error
	select {
	case <-ctx.Done():
		s.log.Warn().Msg("Graceful stop timed out, closing open streams")
		s.grpcServer.Stop()
		err = ctx.Err()
	case <-stopped:
	}

	s.ready = false
	s.log.Info().Msg("gRPC server stopped")

	return err
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}

// registerServices registers all gRPC services
func (s *Server) registerServices() {
	healthpb.RegisterHealthServer(s.grpcServer, s.healthSvc)
	if s.formSvc != nil {
		RegisterFormServiceServer(s.grpcServer, s.formSvc)
	}
}
