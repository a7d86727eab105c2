package handlers

import (
	"context"
	"net/http"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/schema"
)

// FormHandlers provides HTTP handlers for form operations
type FormHandlers struct {
	forms      FormService
	authorizer auth.Authorizer
}

// NewFormHandlers creates new form handlers
func NewFormHandlers(svc FormService, authorizer auth.Authorizer) *FormHandlers {
	return &FormHandlers{forms: svc, authorizer: authorizer}
}

// CreateFormRequest represents a request to create a form
type CreateFormRequest struct {
	Name          string               `json:"name" validate:"required,max=200"`
	Description   string               `json:"description" validate:"max=2000"`
	Schema        schema.Schema        `json:"schema"`
	AccessControl *forms.AccessControl `json:"accessControl,omitempty"`
	Integrations  []forms.Integration  `json:"integrations,omitempty"`
}

// Create handles POST /api/v1/forms
func (h *FormHandlers) Create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if err := auth.RequireOrganization(caller); err != nil {
		writeError(w, err)
		return
	}

	var req CreateFormRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	f, err := h.forms.Create(r.Context(), forms.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		Schema:        req.Schema,
		Organization:  caller.Organization,
		CreatedBy:     caller.UserID,
		AccessControl: req.AccessControl,
		Integrations:  req.Integrations,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "form created", f)
}

// List handles GET /api/v1/forms
func (h *FormHandlers) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if err := auth.RequireOrganization(caller); err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	page, limit, err := validation.Pagination(q)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.forms.List(r.Context(), forms.ListOptions{
		Organization: caller.Organization,
		Status:       forms.Status(q.Get("status")),
		CreatedBy:    q.Get("createdBy"),
		Search:       q.Get("search"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:     "success",
		Data:       result.Forms,
		Pagination: newPagination(result.Page, result.Limit, result.Total),
	})
}

// Get handles GET /api/v1/forms/{id}
func (h *FormHandlers) Get(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionView)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "", f)
}

// GetBySlug handles GET /api/v1/slugs/{slug}. Published public forms
// are readable without an identity so they can be rendered for respondents.
func (h *FormHandlers) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := validation.ValidateNonEmpty("slug", slug); err != nil {
		writeError(w, err)
		return
	}

	f, err := h.forms.GetBySlug(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}

	if !(f.AccessControl.IsPublic && f.Status.AcceptsSubmissions()) {
		caller, _ := auth.FromContext(r.Context())
		if err := h.authorizer.Authorize(caller, resourceOf(f), auth.ActionView); err != nil {
			writeError(w, err)
			return
		}
	}

	writeSuccess(w, http.StatusOK, "", f)
}

// Versions handles GET /api/v1/forms/{id}/versions
func (h *FormHandlers) Versions(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionView)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "", f.Versions)
}

// Update handles PUT /api/v1/forms/{id}
func (h *FormHandlers) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionManage)
	if !ok {
		return
	}

	var req forms.UpdateInput
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	caller := auth.MustFromContext(r.Context())
	updated, err := h.forms.Update(r.Context(), f.ID, req, caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "form updated", updated)
}

// Delete handles DELETE /api/v1/forms/{id}
func (h *FormHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionManage)
	if !ok {
		return
	}
	if err := h.forms.Delete(r.Context(), f.ID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "form deleted", nil)
}

// StartTesting handles POST /api/v1/forms/{id}/start-testing
func (h *FormHandlers) StartTesting(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "form in testing", h.forms.StartTesting)
}

// Publish handles POST /api/v1/forms/{id}/publish
func (h *FormHandlers) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "form published", h.forms.Publish)
}

// Archive handles POST /api/v1/forms/{id}/archive
func (h *FormHandlers) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "form archived", h.forms.Archive)
}

// Duplicate handles POST /api/v1/forms/{id}/duplicate
func (h *FormHandlers) Duplicate(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r, auth.ActionView)
	if !ok {
		return
	}

	caller := auth.MustFromContext(r.Context())
	copied, err := h.forms.Duplicate(r.Context(), f.ID, caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "form duplicated", copied)
}

func (h *FormHandlers) transition(w http.ResponseWriter, r *http.Request, message string, apply func(ctx context.Context, id string) (*forms.Form, error)) {
	f, ok := h.load(w, r, auth.ActionManage)
	if !ok {
		return
	}
	updated, err := apply(r.Context(), f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, message, updated)
}

// load reads the {id} path value, fetches the form and authorizes action
func (h *FormHandlers) load(w http.ResponseWriter, r *http.Request, action auth.Action) (*forms.Form, bool) {
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
