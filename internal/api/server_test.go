package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	httpapi "github.com/formai/engine/internal/api/http"
	"github.com/formai/engine/internal/api/http/middleware"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/storage"
	"github.com/formai/engine/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedGenerator struct {
	text string
}

func (g cannedGenerator) Generate(context.Context, string, string) (string, error) {
	return g.text, nil
}

const generatedForm = `{
  "name": "Inscription atelier",
  "description": "",
  "fields": [
    {"id": "a1", "type": "text", "label": "Nom", "name": "full_name", "required": true},
    {"id": "a2", "type": "email", "label": "Email", "name": "email", "required": true}
  ],
  "layout": {"type": "single", "steps": []},
  "settings": {
    "submitButtonText": "Envoyer",
    "successMessage": "Merci",
    "allowMultipleSubmissions": true,
    "requireAuth": false,
    "notifyOnSubmission": [],
    "autoSave": false
  }
}`

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	ctx := context.Background()

	st, err := storage.NewBuilder().WithDataDir(test.TempDir(t)).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	s, err := NewServer(ctx, cfg, st)
	require.NoError(t, err)

	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
	})
	return s
}

func TestServer_Lifecycle(t *testing.T) {
	s := startServer(t, Config{GRPCEnabled: true, Metrics: metrics.NewSet()})

	assert.True(t, s.Ready())
	assert.NotEmpty(t, s.HTTPAddr())
	assert.NotEmpty(t, s.GRPCAddr())

	resp, err := http.Get("http://" + s.HTTPAddr() + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// idempotent
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Ready())
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_WithoutGRPC(t *testing.T) {
	s := startServer(t, Config{})

	assert.True(t, s.Ready())
	assert.Empty(t, s.GRPCAddr())
}

func TestServer_GenerationWired(t *testing.T) {
	cfg := Config{
		Generator:  cannedGenerator{text: generatedForm},
		Generation: generation.DefaultConfig(),
	}
	s := startServer(t, cfg)

	req, err := http.NewRequest("POST", "http://"+s.HTTPAddr()+"/api/v1/forms/generate",
		strings.NewReader(`{"description":"un atelier de poterie le samedi"}`))
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, "user-1")
	req.Header.Set(middleware.HeaderOrganization, "org-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Data struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Inscription atelier", body.Data.Name)

	f, err := s.Forms().Get(context.Background(), body.Data.ID)
	require.NoError(t, err)
	assert.Len(t, f.PromptHistory, 1)
}

func TestServer_GenerationDisabled(t *testing.T) {
	s := startServer(t, Config{})

	req, err := http.NewRequest("POST", "http://"+s.HTTPAddr()+"/api/v1/forms/generate",
		strings.NewReader(`{"description":"un atelier de poterie le samedi"}`))
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, "user-1")
	req.Header.Set(middleware.HeaderOrganization, "org-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, httpapi.DefaultWriteTimeout, writeTimeout(generation.Config{}))
	assert.Equal(t, 4*time.Minute+30*time.Second, writeTimeout(generation.Config{Timeout: time.Minute, MaxRetries: 3}))
}
