package forms

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() schema.Schema {
	minAge := float64(18)
	return schema.Schema{
		Fields: []schema.Field{
			{ID: "1", Type: schema.TypeHeading, Label: "Coordonnées", Name: "intro"},
			{ID: "2", Type: schema.TypeText, Label: "Nom", Name: "full_name", Required: true},
			{ID: "3", Type: schema.TypeEmail, Label: "Email", Name: "email", Required: true},
			{ID: "4", Type: schema.TypeNumber, Label: "Âge", Name: "age",
				Validation: &schema.FieldValidation{Min: &minAge}},
		},
		Layout:   schema.Layout{Type: schema.LayoutSingle},
		Settings: schema.DefaultSettings(),
	}
}

func setupManager(t *testing.T) (*Manager, *namespace.Provisioner) {
	t.Helper()
	tmpDir := t.TempDir()

	meta, err := metastore.NewStore(filepath.Join(tmpDir, "metadata"))
	require.NoError(t, err)

	prov, err := namespace.NewProvisioner(meta, filepath.Join(tmpDir, "namespaces"), 10)
	require.NoError(t, err)
	require.NoError(t, prov.Start(context.Background()))
	t.Cleanup(func() { prov.Stop(context.Background()) })

	return NewManager(setupStore(t), prov, nil), prov
}

func createInput(name string) CreateInput {
	return CreateInput{
		Name:         name,
		Description:  "Formulaire de test",
		Schema:       sampleSchema(),
		Organization: "org1",
		CreatedBy:    "u1",
	}
}

func TestManager_Create(t *testing.T) {
	m, prov := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact Été"))
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, StatusDraft, f.Status)
	assert.Equal(t, 1, f.Version)
	require.Len(t, f.Versions, 1)
	assert.Equal(t, f.Schema, f.Versions[0].Schema)
	assert.Equal(t, "u1", f.Versions[0].CreatedBy)
	assert.Equal(t, "contact-ete-"+f.ID[len(f.ID)-6:], f.Slug)
	assert.Equal(t, namespace.NamespaceID(f.ID), f.StorageNamespace)
	assert.Equal(t, 0, f.Analytics.TotalSubmissions)

	h, err := prov.Lookup(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Shape().FormVersion)
	assert.Len(t, h.Shape().Fields, 3)

	got, err := m.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Slug, got.Slug)
	assert.Equal(t, f.Schema, got.Schema)
}

func TestManager_CreateRejects(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	t.Run("missing name", func(t *testing.T) {
		in := createInput("")
		_, err := m.Create(ctx, in)
		var ie *InvalidInputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "name", ie.Field)
	})

	t.Run("invalid schema", func(t *testing.T) {
		in := createInput("Contact")
		in.Schema.Fields = append(in.Schema.Fields, schema.Field{ID: "5", Type: schema.TypeText, Label: "Dup", Name: "email"})
		_, err := m.Create(ctx, in)
		var se *schema.InvalidError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, schema.RuleFieldName, se.Rule)
	})

	t.Run("unknown integration", func(t *testing.T) {
		in := createInput("Contact")
		in.Integrations = []Integration{{Type: "ftp"}}
		_, err := m.Create(ctx, in)
		var ie *InvalidInputError
		assert.ErrorAs(t, err, &ie)
	})

	res, err := m.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestManager_CreateFillsDefaults(t *testing.T) {
	m, _ := setupManager(t)

	in := createInput("Contact")
	in.Schema.Layout = schema.Layout{}
	in.Schema.Settings = schema.Settings{}

	f, err := m.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, schema.LayoutSingle, f.Schema.Layout.Type)
	assert.Equal(t, schema.DefaultSubmitButtonText, f.Schema.Settings.SubmitButtonText)
	assert.NotNil(t, f.Schema.Settings.Theme)
}

func TestManager_Update(t *testing.T) {
	m, prov := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	t.Run("metadata only keeps the version", func(t *testing.T) {
		name := "Contact client"
		got, err := m.Update(ctx, f.ID, UpdateInput{Name: &name}, "u2")
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)
		assert.Equal(t, 1, got.Version)
		assert.Len(t, got.Versions, 1)
		assert.Equal(t, f.Slug, got.Slug)
		assert.Equal(t, f.Description, got.Description)
	})

	t.Run("schema change appends a version", func(t *testing.T) {
		next := sampleSchema()
		next.Fields = append(next.Fields, schema.Field{ID: "5", Type: schema.TypePhone, Label: "Téléphone", Name: "phone"})

		got, err := m.Update(ctx, f.ID, UpdateInput{Schema: &next}, "u2")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		require.Len(t, got.Versions, 2)
		assert.Equal(t, "u2", got.Versions[1].CreatedBy)
		assert.Len(t, got.Versions[0].Schema.Fields, 4)
		assert.Len(t, got.Schema.Fields, 5)

		h, err := prov.Lookup(f.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Shape().FormVersion)

		stored, err := m.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version)
		assert.Len(t, stored.Versions, 2)
	})

	t.Run("invalid schema leaves the form untouched", func(t *testing.T) {
		bad := sampleSchema()
		bad.Fields[1].Name = "Full Name"
		_, err := m.Update(ctx, f.ID, UpdateInput{Schema: &bad}, "u2")
		var se *schema.InvalidError
		require.ErrorAs(t, err, &se)

		stored, err := m.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version)
	})

	t.Run("missing form", func(t *testing.T) {
		name := "x"
		_, err := m.Update(ctx, "missing", UpdateInput{Name: &name}, "u2")
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestManager_ConcurrentSchemaUpdates(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := sampleSchema()
			_, err := m.Update(ctx, f.ID, UpdateInput{Schema: &s}, "u2")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := m.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, writers+1, got.Version)
	require.Len(t, got.Versions, writers+1)
	for i, v := range got.Versions {
		assert.Equal(t, i+1, v.Version)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m, prov := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	_, err = m.Publish(ctx, "missing")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	testing1, err := m.StartTesting(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusTesting, testing1.Status)

	h, err := prov.Lookup(f.ID)
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, &namespace.Record{Data: map[string]any{"full_name": "Test"}, IsTest: true}))
	require.NoError(t, h.Insert(ctx, &namespace.Record{Data: map[string]any{"full_name": "Réel"}}))

	published, err := m.Publish(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = m.Publish(ctx, f.ID)
	var ap *AlreadyPublishedError
	require.ErrorAs(t, err, &ap)

	_, err = m.StartTesting(ctx, f.ID)
	var it *InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, StatusPublished, it.From)

	archived, err := m.Archive(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)

	again, err := m.Archive(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, again.Status)

	republished, err := m.Publish(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, republished.Status)

	stored, err := m.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, stored.Status)
	assert.Equal(t, 1, stored.Version)
}

func TestManager_PublishFromDraftWithoutNamespaceRecords(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	published, err := m.Publish(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, published.Status)
}

func TestManager_Duplicate(t *testing.T) {
	m, prov := setupManager(t)
	ctx := context.Background()

	src, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)
	next := sampleSchema()
	next.Fields[1].Label = "Nom complet"
	_, err = m.Update(ctx, src.ID, UpdateInput{Schema: &next}, "u1")
	require.NoError(t, err)
	_, err = m.Publish(ctx, src.ID)
	require.NoError(t, err)

	dup, err := m.Duplicate(ctx, src.ID, "u9")
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.NotEqual(t, src.Slug, dup.Slug)
	assert.Equal(t, "Contact (copie)", dup.Name)
	assert.Equal(t, StatusDraft, dup.Status)
	assert.Equal(t, 1, dup.Version)
	require.Len(t, dup.Versions, 1)
	assert.Equal(t, "Nom complet", dup.Schema.Fields[1].Label)
	assert.Equal(t, dup.Schema, dup.Versions[0].Schema)
	assert.Equal(t, "u9", dup.CreatedBy)
	assert.Equal(t, namespace.NamespaceID(dup.ID), dup.StorageNamespace)

	_, err = prov.Lookup(dup.ID)
	require.NoError(t, err)

	// the copy is independent of the source
	rename := "Copie modifiée"
	_, err = m.Update(ctx, dup.ID, UpdateInput{Name: &rename}, "u9")
	require.NoError(t, err)
	orig, err := m.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", orig.Name)
	assert.Equal(t, 2, orig.Version)

	_, err = m.Duplicate(ctx, "missing", "u9")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestManager_DeleteRetainsNamespace(t *testing.T) {
	m, prov := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, f.ID))

	_, err = m.Get(ctx, f.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = prov.Lookup(f.ID)
	assert.NoError(t, err)

	assert.ErrorAs(t, m.Delete(ctx, f.ID), &nf)
}

func TestManager_DeleteKeepsFormMutex(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	before := m.mutex(f.ID)
	require.NoError(t, m.Delete(ctx, f.ID))
	assert.Same(t, before, m.mutex(f.ID))
}

func TestManager_HoldBlocksTransitions(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	held, release, err := m.Hold(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, held.Status)

	archived := make(chan struct{})
	go func() {
		_, err := m.Archive(ctx, f.ID)
		assert.NoError(t, err)
		close(archived)
	}()

	select {
	case <-archived:
		t.Fatal("archive ran while the form was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-archived:
	case <-time.After(5 * time.Second):
		t.Fatal("archive did not resume after release")
	}

	_, _, err = m.Hold(ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestManager_Counters(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.RecordSubmission(ctx, f.ID, time.Now().UTC()))
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.Analytics.TotalSubmissions)
	assert.NotNil(t, got.Analytics.LastSubmission)

	require.NoError(t, m.RecordSubmissionRemoved(ctx, f.ID))
	got, err = m.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, n-1, got.Analytics.TotalSubmissions)
}

func TestManager_RecordPrompt(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, createInput("Contact"))
	require.NoError(t, err)

	require.NoError(t, m.RecordPrompt(ctx, f.ID, PromptEntry{Prompt: "formulaire de contact", Model: "m1"}))

	got, err := m.Get(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, got.PromptHistory, 1)
	assert.Equal(t, "m1", got.PromptHistory[0].Model)
	assert.False(t, got.PromptHistory[0].CreatedAt.IsZero())
}

func TestManager_List(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	for _, name := range []string{"Contact", "Inscription", "Sondage"} {
		_, err := m.Create(ctx, createInput(name))
		require.NoError(t, err)
	}

	res, err := m.List(ctx, ListOptions{Organization: "org1", Search: "sond"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "Sondage", res.Forms[0].Name)

	_, err = m.List(ctx, ListOptions{Status: "deleted"})
	var ie *InvalidInputError
	assert.True(t, errors.As(err, &ie))
}
