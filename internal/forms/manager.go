package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// duplicateSuffix is appended to the name of a duplicated form
const duplicateSuffix = " (copie)"

// Namespaces provisions and maintains the submission namespaces of forms
type Namespaces interface {
	DefineRecordShape(ctx context.Context, formID string, version int, fields []schema.Field) (*namespace.Handle, error)
	PurgeTestRecords(ctx context.Context, formID string) (int, error)
}

// Manager owns the form lifecycle: authoring, versioning, publication and
// the submission counters
type Manager struct {
	store      *Store
	namespaces Namespaces
	schemas    *schema.Validator
	inputs     *validator.Validate
	metrics    *metrics.FormMetrics
	log        zerolog.Logger

	// locks serialize lifecycle changes per form. Entries are never
	// removed so every caller of an id shares one mutex.
	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex
}

// NewManager creates a form manager
func NewManager(store *Store, namespaces Namespaces, schemas *schema.Validator, formMetrics ...*metrics.FormMetrics) *Manager {
	var m *metrics.FormMetrics
	if len(formMetrics) > 0 {
		m = formMetrics[0]
	}
	if schemas == nil {
		schemas = schema.NewValidator()
	}
	return &Manager{
		store:      store,
		namespaces: namespaces,
		schemas:    schemas,
		inputs:     validator.New(),
		metrics:    m,
		log:        logger.WithComponent("forms"),
		locks:      make(map[string]*sync.RWMutex),
	}
}

// Create stores a new draft form at version 1 and provisions its namespace
func (m *Manager) Create(ctx context.Context, input CreateInput) (_ *Form, err error) {
	defer m.observe("create", time.Now(), &err)

	if err := m.inputs.Struct(input); err != nil {
		return nil, inputError(err)
	}

	live, err := m.prepareSchema(input.Schema)
	if err != nil {
		return nil, err
	}

	id := newID()
	now := clock()
	f := &Form{
		ID:               id,
		Name:             input.Name,
		Slug:             formSlug(input.Name, id),
		Description:      input.Description,
		Organization:     input.Organization,
		CreatedBy:        input.CreatedBy,
		Status:           StatusDraft,
		Version:          1,
		Schema:           live,
		StorageNamespace: namespace.NamespaceID(id),
		Integrations:     input.Integrations,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.AccessControl != nil {
		f.AccessControl = *input.AccessControl
	}
	f.Versions = []Version{{Version: 1, Schema: live, CreatedAt: now, CreatedBy: input.CreatedBy}}
	f.PromptHistory = []PromptEntry{}

	if err := m.store.Insert(ctx, f); err != nil {
		return nil, err
	}

	if _, err := m.namespaces.DefineRecordShape(ctx, id, 1, live.Fields); err != nil {
		if delErr := m.store.Delete(ctx, id); delErr != nil {
			m.log.Error().Err(delErr).Str("form_id", id).Msg("Failed to roll back form after provisioning error")
		}
		return nil, fmt.Errorf("failed to provision namespace: %w", err)
	}

	m.metrics.RecordCreated(f.Organization)
	m.log.Info().
		Str("form_id", id).
		Str("organization", f.Organization).
		Str("slug", f.Slug).
		Msg("Form created")

	return f, nil
}

// Get returns a form with its version and prompt histories
func (m *Manager) Get(ctx context.Context, id string) (*Form, error) {
	return m.store.Get(ctx, id)
}

// GetBySlug returns a form by its public slug
func (m *Manager) GetBySlug(ctx context.Context, slug string) (*Form, error) {
	return m.store.GetBySlug(ctx, slug)
}

// List returns a page of forms, most recently updated first
func (m *Manager) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, &InvalidInputError{Field: "status", Reason: fmt.Sprintf("unknown status %q", opts.Status)}
	}
	return m.store.List(ctx, opts)
}

// Update applies a partial update. A schema change appends a new version
// and redefines the record shape; stored records are not migrated.
func (m *Manager) Update(ctx context.Context, id string, input UpdateInput, author string) (_ *Form, err error) {
	defer m.observe("update", time.Now(), &err)

	if err := m.inputs.Struct(input); err != nil {
		return nil, inputError(err)
	}

	var live *schema.Schema
	if input.Schema != nil {
		s, err := m.prepareSchema(*input.Schema)
		if err != nil {
			return nil, err
		}
		live = &s
	}

	unlock := m.lock(id)
	defer unlock()

	f, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := f.Version

	if input.Name != nil {
		f.Name = *input.Name
	}
	if input.Description != nil {
		f.Description = *input.Description
	}
	if input.AccessControl != nil {
		f.AccessControl = *input.AccessControl
	}
	if input.Integrations != nil {
		f.Integrations = *input.Integrations
	}

	now := clock()
	f.UpdatedAt = now

	var appended *Version
	if live != nil {
		f.Version++
		f.Schema = *live
		appended = &Version{Version: f.Version, Schema: *live, CreatedAt: now, CreatedBy: author}
		f.Versions = append(f.Versions, *appended)
	}

	if err := m.store.Save(ctx, f, expected, appended); err != nil {
		return nil, err
	}

	if appended != nil {
		if _, err := m.namespaces.DefineRecordShape(ctx, id, f.Version, f.Schema.Fields); err != nil {
			return nil, fmt.Errorf("failed to redefine record shape: %w", err)
		}
		m.metrics.RecordSchemaUpdate(f.Organization)
		m.log.Info().
			Str("form_id", id).
			Int("version", f.Version).
			Msg("Form schema updated")
	}

	return f, nil
}

// StartTesting moves a draft form into testing, where submissions are
// accepted and flagged as test records
func (m *Manager) StartTesting(ctx context.Context, id string) (_ *Form, err error) {
	defer m.observe("start_testing", time.Now(), &err)

	return m.transition(ctx, id, StatusTesting, func(f *Form) error {
		switch f.Status {
		case StatusDraft, StatusTesting:
			return nil
		}
		return &InvalidTransitionError{ID: id, From: f.Status, To: StatusTesting}
	})
}

// Publish purges the test records of a form and makes it live
func (m *Manager) Publish(ctx context.Context, id string) (_ *Form, err error) {
	defer m.observe("publish", time.Now(), &err)

	return m.transition(ctx, id, StatusPublished, func(f *Form) error {
		if f.Status == StatusPublished {
			return &AlreadyPublishedError{ID: id}
		}
		purged, err := m.namespaces.PurgeTestRecords(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to purge test records: %w", err)
		}
		if purged > 0 {
			m.log.Info().Str("form_id", id).Int("purged", purged).Msg("Test submissions purged")
		}
		now := clock()
		f.PublishedAt = &now
		return nil
	})
}

// Archive closes a form to submissions, whatever its current state
func (m *Manager) Archive(ctx context.Context, id string) (_ *Form, err error) {
	defer m.observe("archive", time.Now(), &err)

	return m.transition(ctx, id, StatusArchived, nil)
}

// Duplicate copies a form into a new draft with its own identity and namespace
func (m *Manager) Duplicate(ctx context.Context, id, actor string) (_ *Form, err error) {
	defer m.observe("duplicate", time.Now(), &err)

	src, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	copied, err := cloneSchema(src.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to copy schema: %w", err)
	}

	input := CreateInput{
		Name:          src.Name + duplicateSuffix,
		Description:   src.Description,
		Schema:        copied,
		Organization:  src.Organization,
		CreatedBy:     actor,
		AccessControl: copyAccess(src.AccessControl),
		Integrations:  copyIntegrations(src.Integrations),
	}
	return m.Create(ctx, input)
}

// Delete removes a form. Its submission namespace is retained.
func (m *Manager) Delete(ctx context.Context, id string) (err error) {
	defer m.observe("delete", time.Now(), &err)

	unlock := m.lock(id)
	err = m.store.Delete(ctx, id)
	unlock()
	if err != nil {
		return err
	}

	m.log.Info().Str("form_id", id).Msg("Form deleted")
	return nil
}

// RecordPrompt appends a generation exchange to the prompt history
func (m *Manager) RecordPrompt(ctx context.Context, id string, entry PromptEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = clock()
	}
	return m.store.AppendPrompt(ctx, id, entry)
}

// RecordSubmission counts an accepted submission
func (m *Manager) RecordSubmission(ctx context.Context, id string, at time.Time) error {
	return m.store.IncrementSubmissions(ctx, id, at)
}

// RecordSubmissionRemoved uncounts a deleted submission
func (m *Manager) RecordSubmissionRemoved(ctx context.Context, id string) error {
	return m.store.DecrementSubmissions(ctx, id)
}

// transition moves a form to status under its lock. check runs against
// the stored form and may mutate it before it is saved.
func (m *Manager) transition(ctx context.Context, id string, to Status, check func(*Form) error) (*Form, error) {
	unlock := m.lock(id)
	defer unlock()

	f, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if check != nil {
		if err := check(f); err != nil {
			return nil, err
		}
	}

	from := f.Status
	if from == to {
		return f, nil
	}

	f.Status = to
	f.UpdatedAt = clock()
	if err := m.store.Save(ctx, f, f.Version, nil); err != nil {
		return nil, err
	}

	m.metrics.RecordTransition(string(from), string(to))
	m.log.Info().
		Str("form_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Form status changed")

	return f, nil
}

// prepareSchema fills schema defaults and validates the result
func (m *Manager) prepareSchema(s schema.Schema) (schema.Schema, error) {
	live, err := cloneSchema(s)
	if err != nil {
		return schema.Schema{}, &schema.InvalidError{Rule: schema.RuleShape, Reason: err.Error()}
	}
	schema.Normalize(&live)
	if err := m.schemas.ValidateSchema(&live); err != nil {
		return schema.Schema{}, err
	}
	return live, nil
}

// Hold returns the form with its lifecycle frozen until release is called.
// Publish and the other transitions wait for every holder, so a submission
// accepted under a status is stored before that status can change.
func (m *Manager) Hold(ctx context.Context, id string) (_ *Form, release func(), err error) {
	mu := m.mutex(id)
	mu.RLock()

	f, err := m.store.Get(ctx, id)
	if err != nil {
		mu.RUnlock()
		return nil, nil, err
	}
	return f, mu.RUnlock, nil
}

func (m *Manager) lock(id string) func() {
	mu := m.mutex(id)
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) mutex(id string) *sync.RWMutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	mu, ok := m.locks[id]
	if !ok {
		mu = &sync.RWMutex{}
		m.locks[id] = mu
	}
	return mu
}

func (m *Manager) observe(op string, start time.Time, err *error) {
	m.metrics.RecordOperation(op, *err, time.Since(start))
}

func inputError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidInputError{
			Field:  lowerFirst(fe.Field()),
			Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return &InvalidInputError{Field: "input", Reason: err.Error()}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func copyAccess(a AccessControl) *AccessControl {
	return &AccessControl{
		ViewGroups:   append([]string(nil), a.ViewGroups...),
		SubmitGroups: append([]string(nil), a.SubmitGroups...),
		ManageGroups: append([]string(nil), a.ManageGroups...),
		IsPublic:     a.IsPublic,
	}
}

func copyIntegrations(in []Integration) []Integration {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out []Integration
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

var clock = func() time.Time { return time.Now().UTC() }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
