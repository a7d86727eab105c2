package http

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/formai/engine/internal/logger"
	"github.com/rs/zerolog"
)

// Default transport limits. Writes are bounded loosely because generation
// requests wait on the model.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 2 * time.Minute
	DefaultIdleTimeout       = 90 * time.Second
	DefaultMaxHeaderBytes    = 64 << 10
)

// Option adjusts the underlying http.Server
type Option func(*http.Server)

// WithWriteTimeout bounds the time spent writing a response
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) { s.WriteTimeout = d }
}

// WithReadTimeout bounds the time spent reading a request
func WithReadTimeout(d time.Duration) Option {
	return func(s *http.Server) { s.ReadTimeout = d }
}

// Server serves the REST API on a single listener
type Server struct {
	httpServer *http.Server
	router     *Router
	addr       string
	listenAddr string
	log        zerolog.Logger
	ready      bool
	mu         sync.RWMutex
}

// NewServer creates the API server for services; nothing is bound until Start
func NewServer(addr string, services Services, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		router: NewRouter(services),
		log:    logger.WithComponent("http"),
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
		ErrorLog:          stdlog.New(s.log, "", 0),
	}
	for _, opt := range opts {
		opt(s.httpServer)
	}

	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listenAddr = lis.Addr().String()

	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.ready = true
	s.log.Info().
		Str("addr", s.listenAddr).
		Dur("write_timeout", s.httpServer.WriteTimeout).
		Msg("HTTP server started")

	return nil
}

// Stop drains in-flight requests until ctx expires, then closes the
// remaining connections
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false

	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		return fmt.Errorf("HTTP shutdown interrupted: %w", err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Ready reports whether the server is accepting requests
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
