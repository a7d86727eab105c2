package generation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formai/engine/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator replays canned replies in order; the last one repeats
type fakeGenerator struct {
	replies []reply
	calls   atomic.Int32
	onCall  func(ctx context.Context, system, user string)
}

type reply struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	n := int(f.calls.Add(1)) - 1
	if f.onCall != nil {
		f.onCall(ctx, system, user)
	}
	if n >= len(f.replies) {
		n = len(f.replies) - 1
	}
	return f.replies[n].text, f.replies[n].err
}

const validOutput = `{
  "name": "Demande de congé",
  "description": "Formulaire de demande de congé",
  "fields": [
    {"id": "a1", "type": "text", "label": "Nom", "name": "full_name", "required": true},
    {"id": "a2", "type": "date", "label": "Début", "name": "start_date", "required": true},
    {"id": "a3", "type": "radio", "label": "Type", "name": "leave_type", "required": true,
     "options": [{"label": "Payé", "value": "paid"}, {"label": "Maladie", "value": "sick"}]}
  ],
  "layout": {"type": "single", "steps": []},
  "settings": {
    "submitButtonText": "Envoyer",
    "successMessage": "Merci",
    "allowMultipleSubmissions": false,
    "requireAuth": false,
    "notifyOnSubmission": [],
    "autoSave": true
  }
}`

func newTestAdapter(gen TextGenerator) *Adapter {
	cfg := DefaultConfig()
	cfg.Model = "test-model"
	cfg.Timeout = time.Second
	return NewAdapter(gen, nil, cfg)
}

func TestGenerate_Success(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{text: "```json\n" + validOutput + "\n```"}}}
	gen.onCall = func(_ context.Context, system, user string) {
		assert.Equal(t, SystemPrompt(), system)
		assert.Equal(t, "un formulaire de congé", user)
	}

	res, err := newTestAdapter(gen).Generate(context.Background(), "un formulaire de congé")
	require.NoError(t, err)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, "test-model", res.Model)
	assert.Equal(t, "Demande de congé", res.Definition.Name)
	require.Len(t, res.Definition.Fields, 3)
	assert.Equal(t, "leave_type", res.Definition.Fields[2].Name)
	// absent theme is filled in
	require.NotNil(t, res.Definition.Settings.Theme)
	assert.Equal(t, schema.DefaultPrimaryColor, res.Definition.Settings.Theme.PrimaryColor)
	assert.True(t, strings.HasPrefix(res.Raw, "```json"))
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{
		{err: errors.New("connection reset")},
		{text: "voici votre formulaire"},
		{text: validOutput},
	}}

	res, err := newTestAdapter(gen).Generate(context.Background(), "congé")
	require.NoError(t, err)
	assert.Equal(t, int32(3), gen.calls.Load())
	assert.Equal(t, "Demande de congé", res.Definition.Name)
}

func TestGenerate_PropagatesLastError(t *testing.T) {
	tests := []struct {
		name   string
		last   reply
		target any
	}{
		{"upstream", reply{err: errors.New("503")}, new(*UpstreamUnavailableError)},
		{"malformed", reply{text: "{not json"}, new(*MalformedOutputError)},
		{"schema invalid", reply{text: `{"name": "x", "description": "", "fields": [], "layout": {"type": "single"}, "settings": {}}`}, new(*schema.InvalidError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{replies: []reply{{err: errors.New("first")}, tt.last}}

			_, err := newTestAdapter(gen).Generate(context.Background(), "congé")
			require.Error(t, err)
			assert.Equal(t, int32(3), gen.calls.Load())
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestGenerate_DuplicateNamesAreRetried(t *testing.T) {
	dup := strings.Replace(validOutput, `"name": "start_date"`, `"name": "full_name"`, 1)
	gen := &fakeGenerator{replies: []reply{{text: dup}, {text: validOutput}}}

	_, err := newTestAdapter(gen).Generate(context.Background(), "congé")
	require.NoError(t, err)
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestGenerate_NoRetriesConfigured(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{err: errors.New("down")}}}
	cfg := DefaultConfig()
	cfg.MaxRetries = 0

	_, err := NewAdapter(gen, nil, cfg).Generate(context.Background(), "congé")
	var upstream *UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGenerate_AttemptTimeout(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{err: context.DeadlineExceeded}}}
	gen.onCall = func(ctx context.Context, _, _ string) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
	}

	_, err := newTestAdapter(gen).Generate(context.Background(), "congé")
	require.Error(t, err)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{replies: []reply{{err: errors.New("down")}}}
	gen.onCall = func(context.Context, string, string) { cancel() }

	_, err := newTestAdapter(gen).Generate(ctx, "congé")
	require.Error(t, err)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRefine_SingleAttempt(t *testing.T) {
	current := &schema.Definition{Name: "Contact", Schema: schema.Schema{
		Fields: []schema.Field{{ID: "1", Type: schema.TypeText, Label: "Nom", Name: "full_name"}},
	}}

	gen := &fakeGenerator{replies: []reply{{text: "pas de json"}, {text: validOutput}}}
	gen.onCall = func(_ context.Context, _, user string) {
		assert.Contains(t, user, `"full_name"`)
		assert.Contains(t, user, "ajoute une date")
	}

	_, err := newTestAdapter(gen).Refine(context.Background(), current, "ajoute une date")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, int32(1), gen.calls.Load())

	res, err := newTestAdapter(gen).Refine(context.Background(), current, "ajoute une date")
	require.NoError(t, err)
	assert.Len(t, res.Definition.Fields, 3)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}
