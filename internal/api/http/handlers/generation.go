package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/schema"
	"github.com/rs/zerolog"
)

// GenerationHandlers provides HTTP handlers that build forms from prompts
type GenerationHandlers struct {
	forms      FormService
	generator  SchemaGenerator
	authorizer auth.Authorizer
	log        zerolog.Logger
}

// NewGenerationHandlers creates new generation handlers
func NewGenerationHandlers(formSvc FormService, generator SchemaGenerator, authorizer auth.Authorizer) *GenerationHandlers {
	return &GenerationHandlers{
		forms:      formSvc,
		generator:  generator,
		authorizer: authorizer,
		log:        logger.WithComponent("http.generation"),
	}
}

// GenerateRequest asks for a new form from a description
type GenerateRequest struct {
	Description string `json:"description" validate:"required,min=10,max=5000"`
}

// RefineRequest asks for changes to an existing form
type RefineRequest struct {
	Instructions string `json:"instructions" validate:"required,min=5,max=5000"`
}

// Generate handles POST /api/v1/forms/generate. The generated definition is
// stored as a new draft form.
func (h *GenerationHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if err := auth.RequireOrganization(caller); err != nil {
		writeError(w, err)
		return
	}

	var req GenerateRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.generator.Generate(r.Context(), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := h.forms.Create(r.Context(), forms.CreateInput{
		Name:         result.Definition.Name,
		Description:  result.Definition.Description,
		Schema:       result.Definition.Schema,
		Organization: caller.Organization,
		CreatedBy:    caller.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.recordPrompt(r, f, req.Description, result)
	writeSuccess(w, http.StatusCreated, "form generated", f)
}

// Refine handles POST /api/v1/forms/{id}/refine. The refined definition
// replaces the form's name, description and schema.
func (h *GenerationHandlers) Refine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateID("id", id); err != nil {
		writeError(w, err)
		return
	}
	f, err := loadAuthorized(r.Context(), h.forms, h.authorizer, id, auth.ActionManage)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RefineRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	current := &schema.Definition{Name: f.Name, Description: f.Description, Schema: f.Schema}
	result, err := h.generator.Refine(r.Context(), current, req.Instructions)
	if err != nil {
		writeError(w, err)
		return
	}

	def := result.Definition
	caller := auth.MustFromContext(r.Context())
	updated, err := h.forms.Update(r.Context(), f.ID, forms.UpdateInput{
		Name:        &def.Name,
		Description: &def.Description,
		Schema:      &def.Schema,
	}, caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.recordPrompt(r, updated, req.Instructions, result)
	writeSuccess(w, http.StatusOK, "form refined", updated)
}

// recordPrompt appends the exchange to the form's prompt history. The form
// is already stored, so a failure here is logged rather than returned.
func (h *GenerationHandlers) recordPrompt(r *http.Request, f *forms.Form, prompt string, result *generation.Result) {
	response, err := json.Marshal(result.Definition)
	if err != nil {
		response = json.RawMessage(`null`)
	}
	entry := forms.PromptEntry{
		Prompt:    prompt,
		Response:  response,
		Model:     result.Model,
		CreatedAt: now(),
	}
	if err := h.forms.RecordPrompt(r.Context(), f.ID, entry); err != nil {
		h.log.Error().Err(err).Str("form_id", f.ID).Msg("Failed to record prompt history")
		return
	}
	f.PromptHistory = append(f.PromptHistory, entry)
}
