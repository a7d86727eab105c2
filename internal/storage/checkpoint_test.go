package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_SaveLoad(t *testing.T) {
	checkpointPath := filepath.Join(t.TempDir(), "checkpoint.json")

	checkpoint := NewCheckpoint()
	checkpoint.Forms = 2
	checkpoint.Namespaces["form_a_submissions"] = &NamespaceCheckpoint{FormID: "a", FormVersion: 3, Fields: 4, Records: 10}
	checkpoint.Namespaces["form_b_submissions"] = &NamespaceCheckpoint{FormID: "b", FormVersion: 1, Fields: 1, Records: 5}

	require.NoError(t, checkpoint.Save(checkpointPath))

	loaded, err := LoadCheckpoint(checkpointPath)
	require.NoError(t, err)

	assert.Equal(t, CheckpointVersion, loaded.Version)
	assert.Equal(t, 2, loaded.Forms)
	assert.Equal(t, checkpoint.Namespaces, loaded.Namespaces)
	assert.Equal(t, 15, loaded.Records())

	_, err = os.Stat(checkpointPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be cleaned up")
}

func TestCheckpoint_FutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0600))

	_, err := LoadCheckpoint(path)
	assert.Error(t, err)
}

func newCheckpointStorage(t *testing.T) *Storage {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.CheckpointInterval = time.Hour

	st, err := NewBuilder().WithConfig(cfg).BuildAndStart(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func TestCheckpointManager_CollectsNamespaces(t *testing.T) {
	ctx := context.Background()
	st := newCheckpointStorage(t)

	fields := []schema.Field{
		{ID: "1", Type: schema.TypeHeading, Label: "Intro", Name: "intro"},
		{ID: "2", Type: schema.TypeText, Label: "Nom", Name: "nom"},
	}
	h, err := st.Provisioner().DefineRecordShape(ctx, "form1", 2, fields)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Insert(ctx, &namespace.Record{
			FormVersion: 2,
			Data:        map[string]any{"nom": "Ana"},
			Metadata:    namespace.Metadata{SubmittedAt: time.Now().UTC(), Source: namespace.SourceWeb},
			Status:      namespace.StatusSubmitted,
		}))
	}

	manager := st.Checkpoints()
	require.NotNil(t, manager)
	require.NoError(t, manager.SaveCheckpoint())
	assert.False(t, manager.LastCheckpointTime().IsZero())

	checkpoint, err := manager.LoadLatestCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, -1, checkpoint.Forms, "no forms table in a bare storage")

	entry := checkpoint.Namespaces[namespace.NamespaceID("form1")]
	require.NotNil(t, entry)
	assert.Equal(t, "form1", entry.FormID)
	assert.Equal(t, 2, entry.FormVersion)
	assert.Equal(t, 1, entry.Fields)
	assert.Equal(t, 3, entry.Records)
}

func TestCheckpointManager_Rotation(t *testing.T) {
	st := newCheckpointStorage(t)
	manager := st.Checkpoints()
	manager.maxCheckpoints = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, manager.SaveCheckpoint())
	}

	checkpoints, err := manager.listCheckpoints()
	require.NoError(t, err)
	assert.Len(t, checkpoints, 3)
}

func TestCheckpointManager_FinalCheckpointOnStop(t *testing.T) {
	ctx := context.Background()
	st := newCheckpointStorage(t)

	require.NoError(t, st.Stop(ctx))

	checkpoints, err := st.Checkpoints().listCheckpoints()
	require.NoError(t, err)
	assert.Len(t, checkpoints, 1)

	// restart resumes the loop
	require.NoError(t, st.Start(ctx))
	require.NoError(t, st.Stop(ctx))
	checkpoints, err = st.Checkpoints().listCheckpoints()
	require.NoError(t, err)
	assert.Len(t, checkpoints, 2)
}

func TestCheckpointManager_LoadNonExistent(t *testing.T) {
	manager := NewCheckpointManager(&Storage{}, t.TempDir(), time.Second)

	_, err := manager.LoadLatestCheckpoint()
	assert.Error(t, err)
}

func TestCheckpointManager_Disabled(t *testing.T) {
	st, err := NewBuilder().WithConfig(&Config{DataDir: t.TempDir(), PurgeBatchSize: 10}).Build()
	require.NoError(t, err)
	defer st.Close(context.Background())

	assert.Nil(t, st.Checkpoints())
}
