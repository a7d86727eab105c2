package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService serves grpc.health.v1 with the storage readiness
type HealthService struct {
	*health.Server
	storage Readiness
}

// Readiness is anything that reports whether it can serve
type Readiness interface {
	Ready() bool
}

// NewHealthService creates a new health service
func NewHealthService(storage Readiness) *HealthService {
	s := &HealthService{Server: health.NewServer(), storage: storage}
	s.refresh()
	return s
}

// refresh publishes the current readiness for the server and FormService
func (s *HealthService) refresh() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.storage == nil || !s.storage.Ready() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.SetServingStatus("", st)
	s.SetServingStatus(formServiceName, st)
}

// watch refreshes readiness until ctx is done
func (s *HealthService) watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}
