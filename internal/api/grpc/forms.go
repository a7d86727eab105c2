package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// FormService implements formai.v1.FormService
type FormService struct {
	forms       *forms.Manager
	submissions *submissions.Service
	generator   *generation.Adapter
	authorizer  auth.Authorizer
	log         zerolog.Logger
}

var _ FormServiceServer = (*FormService)(nil)

// NewFormService creates the form service; generator may be nil
func NewFormService(formSvc *forms.Manager, submissionSvc *submissions.Service, generator *generation.Adapter, authorizer auth.Authorizer) *FormService {
	if authorizer == nil {
		authorizer = auth.NewGroupAuthorizer()
	}
	return &FormService{
		forms:       formSvc,
		submissions: submissionSvc,
		generator:   generator,
		authorizer:  authorizer,
		log:         logger.WithComponent("grpc.forms"),
	}
}

type formRef struct {
	ID string `json:"id" validate:"required,max=128"`
}

type createFormRequest struct {
	Name          string               `json:"name" validate:"required,max=200"`
	Description   string               `json:"description" validate:"max=2000"`
	Schema        schema.Schema        `json:"schema"`
	AccessControl *forms.AccessControl `json:"accessControl,omitempty"`
	Integrations  []forms.Integration  `json:"integrations,omitempty"`
}

type listFormsRequest struct {
	Status    forms.Status `json:"status"`
	CreatedBy string       `json:"createdBy"`
	Search    string       `json:"search"`
	Page      int          `json:"page" validate:"gte=0"`
	Limit     int          `json:"limit" validate:"gte=0"`
}

type updateFormRequest struct {
	ID string `json:"id" validate:"required,max=128"`
	forms.UpdateInput
}

type generateRequest struct {
	Description string `json:"description" validate:"required,min=10,max=5000"`
}

type refineRequest struct {
	ID           string `json:"id" validate:"required,max=128"`
	Instructions string `json:"instructions" validate:"required,min=5,max=5000"`
}

type submitRequest struct {
	FormID         string           `json:"formId" validate:"required,max=128"`
	Data           map[string]any   `json:"data" validate:"required"`
	Files          []namespace.File `json:"files,omitempty"`
	Test           bool             `json:"test"`
	CompletionTime *float64         `json:"completionTime,omitempty" validate:"omitempty,gte=0"`
}

type listSubmissionsRequest struct {
	FormID      string           `json:"formId" validate:"required,max=128"`
	Status      namespace.Status `json:"status"`
	IncludeTest bool             `json:"includeTest"`
	Page        int              `json:"page" validate:"gte=0"`
	Limit       int              `json:"limit" validate:"gte=0"`
	Filter      string           `json:"filter"`
}

type submissionRef struct {
	FormID string           `json:"formId" validate:"required,max=128"`
	ID     string           `json:"id" validate:"required,max=128"`
	Status namespace.Status `json:"status"`
}

// CreateForm stores a new draft form for the caller's organization
func (s *FormService) CreateForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, _ := auth.FromContext(ctx)
	if err := auth.RequireOrganization(caller); err != nil {
		return nil, err
	}
	var req createFormRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.forms.Create(ctx, forms.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		Schema:        req.Schema,
		Organization:  caller.Organization,
		CreatedBy:     caller.UserID,
		AccessControl: req.AccessControl,
		Integrations:  req.Integrations,
	})
	if err != nil {
		return nil, err
	}
	return encodeStruct(f)
}

// GetForm returns one form
func (s *FormService) GetForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.load(ctx, in, auth.ActionView)
	if err != nil {
		return nil, err
	}
	return encodeStruct(f)
}

// ListForms returns a page of the caller organization's forms
func (s *FormService) ListForms(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, _ := auth.FromContext(ctx)
	if err := auth.RequireOrganization(caller); err != nil {
		return nil, err
	}
	var req listFormsRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	result, err := s.forms.List(ctx, forms.ListOptions{
		Organization: caller.Organization,
		Status:       req.Status,
		CreatedBy:    req.CreatedBy,
		Search:       req.Search,
		Page:         req.Page,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return encodeStruct(result)
}

// UpdateForm applies a partial update
func (s *FormService) UpdateForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req updateFormRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.ID, auth.ActionManage)
	if err != nil {
		return nil, err
	}
	updated, err := s.forms.Update(ctx, f.ID, req.UpdateInput, auth.MustFromContext(ctx).UserID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(updated)
}

// DeleteForm removes a form
func (s *FormService) DeleteForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.load(ctx, in, auth.ActionManage)
	if err != nil {
		return nil, err
	}
	if err := s.forms.Delete(ctx, f.ID); err != nil {
		return nil, err
	}
	return encodeStruct(map[string]any{"id": f.ID, "deleted": true})
}

// StartTesting moves a draft form into testing
func (s *FormService) StartTesting(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, in, s.forms.StartTesting)
}

// PublishForm purges test records and opens the form
func (s *FormService) PublishForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, in, s.forms.Publish)
}

// ArchiveForm closes the form to submissions
func (s *FormService) ArchiveForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, in, s.forms.Archive)
}

// DuplicateForm copies a form into a new draft owned by the caller
func (s *FormService) DuplicateForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.load(ctx, in, auth.ActionView)
	if err != nil {
		return nil, err
	}
	copied, err := s.forms.Duplicate(ctx, f.ID, auth.MustFromContext(ctx).UserID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(copied)
}

// GenerateForm builds a draft form from a description
func (s *FormService) GenerateForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.generator == nil {
		return nil, status.Error(codes.Unimplemented, "form generation is not configured")
	}
	caller, _ := auth.FromContext(ctx)
	if err := auth.RequireOrganization(caller); err != nil {
		return nil, err
	}
	var req generateRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, req.Description)
	if err != nil {
		return nil, err
	}
	f, err := s.forms.Create(ctx, forms.CreateInput{
		Name:         result.Definition.Name,
		Description:  result.Definition.Description,
		Schema:       result.Definition.Schema,
		Organization: caller.Organization,
		CreatedBy:    caller.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.recordPrompt(ctx, f, req.Description, result)
	return encodeStruct(f)
}

// RefineForm rewrites a form's definition from instructions
func (s *FormService) RefineForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.generator == nil {
		return nil, status.Error(codes.Unimplemented, "form generation is not configured")
	}
	var req refineRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.ID, auth.ActionManage)
	if err != nil {
		return nil, err
	}

	current := &schema.Definition{Name: f.Name, Description: f.Description, Schema: f.Schema}
	result, err := s.generator.Refine(ctx, current, req.Instructions)
	if err != nil {
		return nil, err
	}
	def := result.Definition
	updated, err := s.forms.Update(ctx, f.ID, forms.UpdateInput{
		Name:        &def.Name,
		Description: &def.Description,
		Schema:      &def.Schema,
	}, auth.MustFromContext(ctx).UserID)
	if err != nil {
		return nil, err
	}
	s.recordPrompt(ctx, updated, req.Instructions, result)
	return encodeStruct(updated)
}

// SubmitForm accepts a submission
func (s *FormService) SubmitForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submitRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionSubmit)
	if err != nil {
		return nil, err
	}

	input := submissions.CreateInput{
		Data:  req.Data,
		Files: req.Files,
		Test:  req.Test,
		Metadata: namespace.Metadata{
			CompletionTime: req.CompletionTime,
			Source:         namespace.SourceAPI,
		},
	}
	if caller, ok := auth.FromContext(ctx); ok {
		input.Metadata.SubmittedBy = caller.UserID
	}
	rec, err := s.submissions.Create(ctx, f.ID, input)
	if err != nil {
		return nil, err
	}
	return encodeStruct(rec)
}

// ListSubmissions returns a page of a form's submissions
func (s *FormService) ListSubmissions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listSubmissionsRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionView)
	if err != nil {
		return nil, err
	}
	result, err := s.submissions.List(ctx, f.ID, namespace.ListOptions{
		Status:      req.Status,
		IncludeTest: req.IncludeTest,
		Page:        req.Page,
		Limit:       req.Limit,
		Filter:      req.Filter,
	})
	if err != nil {
		return nil, err
	}
	return encodeStruct(result)
}

// GetSubmission returns one submission
func (s *FormService) GetSubmission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submissionRef
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionView)
	if err != nil {
		return nil, err
	}
	rec, err := s.submissions.Get(ctx, f.ID, req.ID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(rec)
}

// UpdateSubmissionStatus changes the review status of a submission
func (s *FormService) UpdateSubmissionStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submissionRef
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionManage)
	if err != nil {
		return nil, err
	}
	rec, err := s.submissions.UpdateStatus(ctx, f.ID, req.ID, req.Status)
	if err != nil {
		return nil, err
	}
	return encodeStruct(rec)
}

// DeleteSubmission removes a submission
func (s *FormService) DeleteSubmission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submissionRef
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionManage)
	if err != nil {
		return nil, err
	}
	if err := s.submissions.Delete(ctx, f.ID, req.ID); err != nil {
		return nil, err
	}
	return encodeStruct(map[string]any{"id": req.ID, "deleted": true})
}

// ExportSubmissions renders the non-test submissions of a form as CSV
func (s *FormService) ExportSubmissions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		FormID string `json:"formId" validate:"required,max=128"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	f, err := s.authorized(ctx, req.FormID, auth.ActionView)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.submissions.Export(ctx, f.ID, &buf); err != nil {
		return nil, err
	}
	return encodeStruct(map[string]any{"formId": f.ID, "csv": buf.String()})
}

func (s *FormService) transition(ctx context.Context, in *structpb.Struct, apply func(context.Context, string) (*forms.Form, error)) (*structpb.Struct, error) {
	f, err := s.load(ctx, in, auth.ActionManage)
	if err != nil {
		return nil, err
	}
	updated, err := apply(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(updated)
}

// load reads {"id"} from the request and authorizes action on that form
func (s *FormService) load(ctx context.Context, in *structpb.Struct, action auth.Action) (*forms.Form, error) {
	var ref formRef
	if err := decodeStruct(in, &ref); err != nil {
		return nil, err
	}
	return s.authorized(ctx, ref.ID, action)
}

func (s *FormService) authorized(ctx context.Context, id string, action auth.Action) (*forms.Form, error) {
	if err := validation.ValidateID("id", id); err != nil {
		return nil, err
	}
	f, err := s.forms.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, _ := auth.FromContext(ctx)
	res := auth.Resource{
		ID:           f.ID,
		Organization: f.Organization,
		IsPublic:     f.AccessControl.IsPublic,
		ViewGroups:   f.AccessControl.ViewGroups,
		SubmitGroups: f.AccessControl.SubmitGroups,
		ManageGroups: f.AccessControl.ManageGroups,
	}
	if err := s.authorizer.Authorize(caller, res, action); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FormService) recordPrompt(ctx context.Context, f *forms.Form, prompt string, result *generation.Result) {
	response, err := json.Marshal(result.Definition)
	if err != nil {
		response = json.RawMessage(`null`)
	}
	entry := forms.PromptEntry{
		Prompt:    prompt,
		Response:  response,
		Model:     result.Model,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.forms.RecordPrompt(ctx, f.ID, entry); err != nil {
		s.log.Error().Err(err).Str("form_id", f.ID).Msg("Failed to record prompt history")
		return
	}
	f.PromptHistory = append(f.PromptHistory, entry)
}
