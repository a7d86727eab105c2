package test_test

import (
	"context"
	"testing"

	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
	"github.com/formai/engine/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecovery_RestartKeepsFormsAndSubmissions closes a populated engine and
// reopens its data directory
func TestRecovery_RestartKeepsFormsAndSubmissions(t *testing.T) {
	ctx := context.Background()
	dataDir := test.TempDir(t)

	first := test.OpenEngine(t, dataDir)
	f := first.CreateForm(t, "org-1", "Contact")

	_, err := first.Forms.StartTesting(ctx, f.ID)
	require.NoError(t, err)
	_, err = first.Submissions.Create(ctx, f.ID, submissions.CreateInput{Data: test.SampleData("Essai"), Test: true})
	require.NoError(t, err)

	_, err = first.Forms.Publish(ctx, f.ID)
	require.NoError(t, err)

	var ids []string
	for _, name := range []string{"Ana", "Louis", "Chloé"} {
		rec, err := first.Submissions.Create(ctx, f.ID, submissions.CreateInput{Data: test.SampleData(name)})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	_, err = first.Submissions.UpdateStatus(ctx, f.ID, ids[0], namespace.StatusApproved)
	require.NoError(t, err)

	updated := test.SampleSchema()
	updated.Fields = append(updated.Fields, schema.Field{ID: "f4", Type: schema.TypePhone, Label: "Téléphone", Name: "phone"})
	_, err = first.Forms.Update(ctx, f.ID, forms.UpdateInput{Schema: &updated}, "user-1")
	require.NoError(t, err)

	require.NoError(t, first.Storage.Close(ctx))

	second := test.OpenEngine(t, dataDir)

	got, err := second.Forms.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, forms.StatusPublished, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Versions, 2)
	// the counter keeps the purged test submission
	assert.Equal(t, 4, got.Analytics.TotalSubmissions)

	h, err := second.Storage.Provisioner().Lookup(f.ID)
	require.NoError(t, err)
	shape := h.Shape()
	assert.Equal(t, 2, shape.FormVersion)
	assert.Len(t, shape.Fields, 4)

	// test data was purged on publish and stays gone
	list, err := second.Submissions.List(ctx, f.ID, namespace.ListOptions{IncludeTest: true})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)

	rec, err := second.Submissions.Get(ctx, f.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, namespace.StatusApproved, rec.Status)
	assert.Equal(t, 1, rec.FormVersion)

	// new submissions follow the current version
	rec, err = second.Submissions.Create(ctx, f.ID, submissions.CreateInput{Data: test.SampleData("Inès")})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FormVersion)
}
