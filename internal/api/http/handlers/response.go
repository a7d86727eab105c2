package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
)

// Response is the envelope of every JSON reply
type Response struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Field      string      `json:"field,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page returned by a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPagination(page, limit, total int) *Pagination {
	p := &Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// status already written
		return
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Status: "success", Message: message, Data: data})
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status, field := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log := logger.WithComponent("http.handlers")
		log.Error().Err(err).Msg("Request failed")
		message = "internal server error"
	}
	writeJSON(w, status, Response{Status: "error", Message: message, Field: field})
}

func errorStatus(err error) (int, string) {
	var (
		requestErr     validation.RequestError
		schemaErr      *schema.InvalidError
		submissionErr  *submissions.ValidationFailedError
		inputErr       *forms.InvalidInputError
		statusErr      *namespace.InvalidStatusError
		recordErr      *namespace.InvalidRecordError
		filterErr      *namespace.InvalidFilterError
		unauthorized   auth.UnauthorizedError
		forbidden      auth.ForbiddenError
		formNotFound   *forms.NotFoundError
		recordNotFound *namespace.RecordNotFoundError
		published      *forms.AlreadyPublishedError
		closed         *submissions.SubmissionsClosedError
		transition     *forms.InvalidTransitionError
		conflict       *forms.ConflictError
		upstream       *generation.UpstreamUnavailableError
		malformed      *generation.MalformedOutputError
	)

	switch {
	case errors.As(err, &requestErr):
		return http.StatusBadRequest, requestErr.Target()
	case errors.As(err, &schemaErr):
		return http.StatusBadRequest, schemaErr.Path
	case errors.As(err, &submissionErr):
		return http.StatusBadRequest, submissionErr.Field
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Field
	case errors.As(err, &statusErr):
		return http.StatusBadRequest, "status"
	case errors.As(err, &recordErr):
		return http.StatusBadRequest, recordErr.Path
	case errors.As(err, &filterErr):
		return http.StatusBadRequest, "filter"
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, ""
	case errors.As(err, &forbidden):
		return http.StatusForbidden, ""
	case errors.As(err, &formNotFound), errors.As(err, &recordNotFound):
		return http.StatusNotFound, ""
	case errors.As(err, &published), errors.As(err, &closed),
		errors.As(err, &transition), errors.As(err, &conflict):
		return http.StatusConflict, ""
	case errors.As(err, &upstream), errors.As(err, &malformed):
		return http.StatusBadGateway, ""
	}
	return http.StatusInternalServerError, ""
}
