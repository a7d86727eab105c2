package handlers

import (
	"encoding/json"
	"net/http"
)

// Readiness is anything that reports whether it can serve
type Readiness interface {
	Ready() bool
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// ReadinessCheck returns a handler that checks if the storage is ready
func ReadinessCheck(storage Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "ready"}
		status := http.StatusOK
		if storage == nil || !storage.Ready() {
			response.Status = "not ready"
			response.Message = "storage is not started"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
