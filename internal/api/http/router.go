package http

import (
	"net/http"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/http/handlers"
	"github.com/formai/engine/internal/api/http/middleware"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Services are the domain components served over HTTP
type Services struct {
	Storage     handlers.Readiness
	Forms       handlers.FormService
	Submissions handlers.SubmissionService
	// Generator is optional; generation routes answer 503 without it
	Generator  handlers.SchemaGenerator
	Authorizer auth.Authorizer
	// Metrics is optional
	Metrics  *metrics.NodeMetrics
	Registry *prometheus.Registry
}

// Router manages HTTP routes and middleware
type Router struct {
	mux                *http.ServeMux
	services           Services
	formHandlers       *handlers.FormHandlers
	submissionHandlers *handlers.SubmissionHandlers
	generationHandlers *handlers.GenerationHandlers
}

// NewRouter creates a new router
func NewRouter(services Services) *Router {
	if services.Authorizer == nil {
		services.Authorizer = auth.NewGroupAuthorizer()
	}

	r := &Router{
		mux:                http.NewServeMux(),
		services:           services,
		formHandlers:       handlers.NewFormHandlers(services.Forms, services.Authorizer),
		submissionHandlers: handlers.NewSubmissionHandlers(services.Forms, services.Submissions, services.Authorizer),
	}
	if services.Generator != nil {
		r.generationHandlers = handlers.NewGenerationHandlers(services.Forms, services.Generator, services.Authorizer)
	}

	r.setupRoutes()

	return r
}

// ServeHTTP dispatches to the routes
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes() {
	log := logger.WithComponent("http.middleware")
	base := middleware.Chain(
		middleware.Recovery(log),
		middleware.Logging(log),
	)
	api := middleware.Chain(
		middleware.Recovery(log),
		middleware.Tracing(),
		middleware.Metrics(r.services.Metrics),
		middleware.Logging(log),
		middleware.Identity(),
	)

	// Health and metrics endpoints (no identity required)
	r.mux.Handle("GET /health", base(http.HandlerFunc(handlers.HealthCheck)))
	r.mux.Handle("GET /ready", base(handlers.ReadinessCheck(r.services.Storage)))
	r.mux.Handle("GET /metrics", handlers.MetricsHandler(r.services.Registry))

	handle := func(pattern string, h http.HandlerFunc) {
		r.mux.Handle(pattern, api(h))
	}

	// Forms
	forms := r.formHandlers
	handle("POST /api/v1/forms", forms.Create)
	handle("GET /api/v1/forms", forms.List)
	handle("GET /api/v1/slugs/{slug}", forms.GetBySlug)
	handle("GET /api/v1/forms/{id}", forms.Get)
	handle("PUT /api/v1/forms/{id}", forms.Update)
	handle("DELETE /api/v1/forms/{id}", forms.Delete)
	handle("GET /api/v1/forms/{id}/versions", forms.Versions)
	handle("POST /api/v1/forms/{id}/start-testing", forms.StartTesting)
	handle("POST /api/v1/forms/{id}/publish", forms.Publish)
	handle("POST /api/v1/forms/{id}/archive", forms.Archive)
	handle("POST /api/v1/forms/{id}/duplicate", forms.Duplicate)

	// Generation
	if gen := r.generationHandlers; gen != nil {
		handle("POST /api/v1/forms/generate", gen.Generate)
		handle("POST /api/v1/forms/{id}/refine", gen.Refine)
	} else {
		handle("POST /api/v1/forms/generate", generationDisabled)
		handle("POST /api/v1/forms/{id}/refine", generationDisabled)
	}

	// Submissions
	subs := r.submissionHandlers
	handle("POST /api/v1/forms/{id}/submissions", subs.Create)
	handle("GET /api/v1/forms/{id}/submissions", subs.List)
	handle("GET /api/v1/forms/{id}/submissions/export", subs.Export)
	handle("GET /api/v1/forms/{id}/submissions/{sid}", subs.Get)
	handle("PUT /api/v1/forms/{id}/submissions/{sid}", subs.UpdateStatus)
	handle("DELETE /api/v1/forms/{id}/submissions/{sid}", subs.Delete)
}

func generationDisabled(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"status":"error","message":"form generation is not configured"}`))
}
