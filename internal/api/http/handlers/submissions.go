package handlers

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
)

// SubmissionHandlers provides HTTP handlers for submission operations
type SubmissionHandlers struct {
	forms       FormService
	submissions SubmissionService
	authorizer  auth.Authorizer
}

// NewSubmissionHandlers creates new submission handlers
func NewSubmissionHandlers(formSvc FormService, submissionSvc SubmissionService, authorizer auth.Authorizer) *SubmissionHandlers {
	return &SubmissionHandlers{forms: formSvc, submissions: submissionSvc, authorizer: authorizer}
}

// CreateSubmissionRequest represents an incoming submission
type CreateSubmissionRequest struct {
	Data           map[string]any   `json:"data" validate:"required"`
	Files          []namespace.File `json:"files,omitempty"`
	CompletionTime *float64         `json:"completionTime,omitempty" validate:"omitempty,gte=0"`
	Source         namespace.Source `json:"source,omitempty" validate:"omitempty,oneof=web api mobile"`
}

// UpdateStatusRequest represents a submission review status change
type UpdateStatusRequest struct {
	Status namespace.Status `json:"status" validate:"required"`
}

// Create handles POST /api/v1/forms/{id}/submissions. mode=test marks the
// submission as test data.
func (h *SubmissionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionSubmit)
	if !ok {
		return
	}

	var req CreateSubmissionRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	input := submissions.CreateInput{
		Data:  req.Data,
		Files: req.Files,
		Test:  r.URL.Query().Get("mode") == "test",
		Metadata: namespace.Metadata{
			IP:             clientIP(r),
			UserAgent:      r.UserAgent(),
			CompletionTime: req.CompletionTime,
			Source:         req.Source,
		},
	}
	if caller, ok := auth.FromContext(r.Context()); ok {
		input.Metadata.SubmittedBy = caller.UserID
	}

	rec, err := h.submissions.Create(r.Context(), f.ID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "submission accepted", rec)
}

// List handles GET /api/v1/forms/{id}/submissions
func (h *SubmissionHandlers) List(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionView)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, limit, err := validation.Pagination(q)
	if err != nil {
		writeError(w, err)
		return
	}
	includeTest, err := validation.Bool(q, "includeTest")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.submissions.List(r.Context(), f.ID, namespace.ListOptions{
		Status:      namespace.Status(q.Get("status")),
		IncludeTest: includeTest,
		Page:        page,
		Limit:       limit,
		Filter:      q.Get("filter"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:     "success",
		Data:       result.Records,
		Pagination: newPagination(result.Page, result.Limit, result.Total),
	})
}

// Get handles GET /api/v1/forms/{id}/submissions/{sid}
func (h *SubmissionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	f, sid, ok := h.loadRecord(w, r, auth.ActionView)
	if !ok {
		return
	}
	rec, err := h.submissions.Get(r.Context(), f.ID, sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", rec)
}

// UpdateStatus handles PUT /api/v1/forms/{id}/submissions/{sid}
func (h *SubmissionHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	f, sid, ok := h.loadRecord(w, r, auth.ActionManage)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.submissions.UpdateStatus(r.Context(), f.ID, sid, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission updated", rec)
}

// Delete handles DELETE /api/v1/forms/{id}/submissions/{sid}
func (h *SubmissionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	f, sid, ok := h.loadRecord(w, r, auth.ActionManage)
	if !ok {
		return
	}
	if err := h.submissions.Delete(r.Context(), f.ID, sid); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission deleted", nil)
}

// Export handles GET /api/v1/forms/{id}/submissions/export
func (h *SubmissionHandlers) Export(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionView)
	if !ok {
		return
	}

	// buffered so a failure midway still yields a JSON error
	var buf bytes.Buffer
	if err := h.submissions.Export(r.Context(), f.ID, &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "submissions-"+f.ID+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *SubmissionHandlers) load(w http.ResponseWriter, r *http.Request, action auth.Action) (*forms.Form, bool) {
	id := r.PathValue("id")
	if err := validation.ValidateID("id", id); err != nil {
		writeError(w, err)
		return nil, false
	}
	f, err := loadAuthorized(r.Context(), h.forms, h.authorizer, id, action)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return f, true
}

func (h *SubmissionHandlers) loadRecord(w http.ResponseWriter, r *http.Request, action auth.Action) (*forms.Form, string, bool) {
	sid := r.PathValue("sid")
	if err := validation.ValidateID("sid", sid); err != nil {
		writeError(w, err)
		return nil, "", false
	}
	f, ok := h.load(w, r, action)
	return f, sid, ok
}

// clientIP returns the first forwarded address, or the peer address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
