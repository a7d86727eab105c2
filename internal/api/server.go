package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/formai/engine/internal/api/auth"
	grpcapi "github.com/formai/engine/internal/api/grpc"
	httpapi "github.com/formai/engine/internal/api/http"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage"
	"github.com/formai/engine/internal/submissions"
	"github.com/rs/zerolog"
)

// Server wires the engine components and serves them over HTTP and,
// optionally, gRPC
type Server struct {
	storage     *storage.Storage
	forms       *forms.Manager
	submissions *submissions.Service
	generator   *generation.Adapter
	grpcServer  *grpcapi.Server
	httpServer  *httpapi.Server
	log         zerolog.Logger
	ready       bool
	mu          sync.RWMutex
}

// Config holds configuration for the API server
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	GRPCEnabled bool

	// Generator enables the generation routes when set
	Generator  generation.TextGenerator
	Generation generation.Config

	// Metrics is optional
	Metrics *metrics.Set
}

// NewServer creates the form lifecycle, the submission pipeline and the
// transports on top of st. st must be built; it is started by Start.
func NewServer(ctx context.Context, cfg Config, st *storage.Storage) (*Server, error) {
	store, err := forms.NewStore(ctx, st.FormsDB())
	if err != nil {
		return nil, fmt.Errorf("failed to open forms store: %w", err)
	}

	var (
		formMetrics       *metrics.FormMetrics
		submissionMetrics *metrics.SubmissionMetrics
		generationMetrics *metrics.GenerationMetrics
		nodeMetrics       *metrics.NodeMetrics
	)
	if cfg.Metrics != nil {
		formMetrics = cfg.Metrics.Forms
		submissionMetrics = cfg.Metrics.Submissions
		generationMetrics = cfg.Metrics.Generation
		nodeMetrics = cfg.Metrics.Node
	}

	validator := schema.NewValidator()
	s := &Server{
		storage: st,
		forms:   forms.NewManager(store, st.Provisioner(), validator, formMetrics),
		log:     logger.WithComponent("api"),
	}
	s.submissions = submissions.NewService(s.forms, st.Provisioner(), submissionMetrics)

	if cfg.Generator != nil {
		s.generator = generation.NewAdapter(cfg.Generator, validator, cfg.Generation, generationMetrics)
	} else {
		s.log.Warn().Msg("No generation API key configured, generation routes disabled")
	}

	authorizer := auth.NewGroupAuthorizer()
	services := httpapi.Services{
		Storage:     st,
		Forms:       s.forms,
		Submissions: s.submissions,
		Authorizer:  authorizer,
		Metrics:     nodeMetrics,
	}
	if s.generator != nil {
		services.Generator = s.generator
	}
	if cfg.Metrics != nil {
		services.Registry = cfg.Metrics.Collector.Registry()
	}
	s.httpServer = httpapi.NewServer(cfg.HTTPAddr, services, httpapi.WithWriteTimeout(writeTimeout(cfg.Generation)))

	if cfg.GRPCEnabled {
		formSvc := grpcapi.NewFormService(s.forms, s.submissions, s.generator, authorizer)
		s.grpcServer = grpcapi.NewServer(cfg.GRPCAddr, st, formSvc, nodeMetrics)
	}

	return s, nil
}

// writeTimeout leaves room for a generation request to exhaust its retries
func writeTimeout(gen generation.Config) time.Duration {
	budget := gen.Timeout*time.Duration(gen.MaxRetries+1) + 30*time.Second
	if budget < httpapi.DefaultWriteTimeout {
		return httpapi.DefaultWriteTimeout
	}
	return budget
}

// Forms returns the form lifecycle manager
func (s *Server) Forms() *forms.Manager {
	return s.forms
}

// Submissions returns the submission pipeline
func (s *Server) Submissions() *submissions.Service {
	return s.submissions
}

// HTTPAddr returns the bound HTTP address once started
func (s *Server) HTTPAddr() string {
	return s.httpServer.Addr()
}

// GRPCAddr returns the bound gRPC address, empty when gRPC is disabled
func (s *Server) GRPCAddr() string {
	if s.grpcServer == nil {
		return ""
	}
	return s.grpcServer.Addr()
}

// Start starts storage, then the gRPC and HTTP servers
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	s.log.Info().Msg("Starting API server")

	if err := s.storage.Start(ctx); err != nil {
		return err
	}
	if err := s.storage.Validate(ctx); err != nil {
		s.storage.Stop(ctx)
		return fmt.Errorf("storage failed validation: %w", err)
	}

	if s.grpcServer != nil {
		if err := s.grpcServer.Start(ctx); err != nil {
			return err
		}
	}

	if err := s.httpServer.Start(ctx); err != nil {
		if s.grpcServer != nil {
			s.grpcServer.Stop(ctx)
		}
		return err
	}

	s.ready = true
	s.log.Info().
		Str("http_addr", s.httpServer.Addr()).
		Bool("grpc", s.grpcServer != nil).
		Bool("generation", s.generator != nil).
		Msg("API server started")

	return nil
}

// Stop gracefully stops both servers, then storage
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping API server")

	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping HTTP server")
	}

	if s.grpcServer != nil {
		if err := s.grpcServer.Stop(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Error stopping gRPC server")
		}
	}

	if err := s.storage.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping storage")
	}

	s.ready = false
	s.log.Info().Msg("API server stopped")

	return nil
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready || !s.httpServer.Ready() || !s.storage.Ready() {
		return false
	}
	return s.grpcServer == nil || s.grpcServer.Ready()
}
