package test

import (
	"context"
	"testing"

	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage"
	"github.com/formai/engine/internal/submissions"
	"github.com/stretchr/testify/require"
)

// Engine is a fully wired storage, form lifecycle and submission pipeline
// rooted in a temporary data directory
type Engine struct {
	DataDir     string
	Storage     *storage.Storage
	Forms       *forms.Manager
	Submissions *submissions.Service
}

// NewEngine builds and starts an Engine; it is closed when the test ends
func NewEngine(t *testing.T) *Engine {
	t.Helper()
	return OpenEngine(t, TempDir(t))
}

// OpenEngine builds and starts an Engine over an existing data directory
func OpenEngine(t *testing.T, dataDir string) *Engine {
	t.Helper()
	ctx := context.Background()

	st, err := storage.NewBuilder().WithDataDir(dataDir).BuildAndStart(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	store, err := forms.NewStore(ctx, st.FormsDB())
	require.NoError(t, err)

	manager := forms.NewManager(store, st.Provisioner(), schema.NewValidator())
	return &Engine{
		DataDir:     dataDir,
		Storage:     st,
		Forms:       manager,
		Submissions: submissions.NewService(manager, st.Provisioner()),
	}
}

// CreateForm stores a draft form with SampleSchema for the organization
func (e *Engine) CreateForm(t *testing.T, organization, name string) *forms.Form {
	t.Helper()
	f, err := e.Forms.Create(context.Background(), forms.CreateInput{
		Name:         name,
		Schema:       SampleSchema(),
		Organization: organization,
		CreatedBy:    "user-1",
	})
	require.NoError(t, err)
	return f
}

// SampleSchema returns a contact form: a heading, a required name, a
// required email and an optional age of at least 18
func SampleSchema() schema.Schema {
	minAge := float64(18)
	return schema.Schema{
		Fields: []schema.Field{
			{ID: "f0", Type: schema.TypeHeading, Label: "Vos coordonnées", Name: "intro"},
			{ID: "f1", Type: schema.TypeText, Label: "Nom complet", Name: "full_name", Required: true},
			{ID: "f2", Type: schema.TypeEmail, Label: "Adresse email", Name: "email", Required: true},
			{ID: "f3", Type: schema.TypeNumber, Label: "Âge", Name: "age", Validation: &schema.FieldValidation{Min: &minAge}},
		},
	}
}

// SampleData returns a submission payload valid against SampleSchema
func SampleData(name string) map[string]any {
	return map[string]any{"full_name": name, "email": "ana@example.com", "age": float64(30)}
}
