package handlers

import (
	"context"
	"io"
	"time"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
)

// FormService is the form lifecycle the handlers drive
type FormService interface {
	Create(ctx context.Context, input forms.CreateInput) (*forms.Form, error)
	Get(ctx context.Context, id string) (*forms.Form, error)
	GetBySlug(ctx context.Context, slug string) (*forms.Form, error)
	List(ctx context.Context, opts forms.ListOptions) (*forms.ListResult, error)
	Update(ctx context.Context, id string, input forms.UpdateInput, author string) (*forms.Form, error)
	StartTesting(ctx context.Context, id string) (*forms.Form, error)
	Publish(ctx context.Context, id string) (*forms.Form, error)
	Archive(ctx context.Context, id string) (*forms.Form, error)
	Duplicate(ctx context.Context, id, actor string) (*forms.Form, error)
	Delete(ctx context.Context, id string) error
	RecordPrompt(ctx context.Context, id string, entry forms.PromptEntry) error
}

// SubmissionService is the ingestion pipeline the handlers drive
type SubmissionService interface {
	Create(ctx context.Context, formID string, input submissions.CreateInput) (*namespace.Record, error)
	List(ctx context.Context, formID string, opts namespace.ListOptions) (*namespace.ListResult, error)
	Get(ctx context.Context, formID, recordID string) (*namespace.Record, error)
	UpdateStatus(ctx context.Context, formID, recordID string, status namespace.Status) (*namespace.Record, error)
	Delete(ctx context.Context, formID, recordID string) error
	Export(ctx context.Context, formID string, w io.Writer) error
}

// SchemaGenerator produces form definitions from natural language
type SchemaGenerator interface {
	Generate(ctx context.Context, description string) (*generation.Result, error)
	Refine(ctx context.Context, current *schema.Definition, instructions string) (*generation.Result, error)
}

var (
	_ FormService       = (*forms.Manager)(nil)
	_ SubmissionService = (*submissions.Service)(nil)
	_ SchemaGenerator   = (*generation.Adapter)(nil)
)

// resourceOf describes a form to the authorizer
func resourceOf(f *forms.Form) auth.Resource {
	return auth.Resource{
		ID:           f.ID,
		Organization: f.Organization,
		IsPublic:     f.AccessControl.IsPublic,
		ViewGroups:   f.AccessControl.ViewGroups,
		SubmitGroups: f.AccessControl.SubmitGroups,
		ManageGroups: f.AccessControl.ManageGroups,
	}
}

// loadAuthorized fetches a form and checks the caller may act on it
func loadAuthorized(ctx context.Context, svc FormService, authorizer auth.Authorizer, id string, action auth.Action) (*forms.Form, error) {
	f, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, _ := auth.FromContext(ctx)
	if err := authorizer.Authorize(caller, resourceOf(f), action); err != nil {
		return nil, err
	}
	return f, nil
}

var now = func() time.Time { return time.Now().UTC() }
