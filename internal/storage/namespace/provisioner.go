package namespace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPurgeBatchSize is the number of records deleted per batch commit
const DefaultPurgeBatchSize = 500

// NamespaceID returns the storage namespace identifier of a form
func NamespaceID(formID string) string {
	return "form_" + formID + "_submissions"
}

// Provisioner owns one pebble database per form namespace and the record
// shapes registered for them in the metastore
type Provisioner struct {
	metaStore      *metastore.Store
	baseDir        string
	purgeBatchSize int
	envelope       *jsonschema.Schema
	handles        map[string]*Handle // namespace id -> handle
	metrics        *metrics.NamespaceMetrics
	log            zerolog.Logger
	mu             sync.Mutex
	ready          bool
}

// NewProvisioner creates a new namespace provisioner rooted at baseDir
func NewProvisioner(metaStore *metastore.Store, baseDir string, purgeBatchSize int, nsMetrics ...*metrics.NamespaceMetrics) (*Provisioner, error) {
	envelope, err := compileEnvelope()
	if err != nil {
		return nil, fmt.Errorf("failed to compile record envelope: %w", err)
	}
	if purgeBatchSize <= 0 {
		purgeBatchSize = DefaultPurgeBatchSize
	}

	var nm *metrics.NamespaceMetrics
	if len(nsMetrics) > 0 {
		nm = nsMetrics[0]
	}

	return &Provisioner{
		metaStore:      metaStore,
		baseDir:        baseDir,
		purgeBatchSize: purgeBatchSize,
		envelope:       envelope,
		handles:        make(map[string]*Handle),
		metrics:        nm,
		log:            logger.WithComponent("namespace"),
	}, nil
}

// Start marks the provisioner ready
func (p *Provisioner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return nil
	}

	if err := os.MkdirAll(p.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create namespaces directory: %w", err)
	}

	p.ready = true
	p.log.Info().Int("namespaces", p.metaStore.Len()).Msg("Namespace provisioner started")
	return nil
}

// Stop closes every open namespace database
func (p *Provisioner) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil
	}

	var lastErr error
	for id, h := range p.handles {
		if err := h.close(); err != nil {
			p.log.Error().Err(err).Str("namespace", id).Msg("Failed to close Pebble DB")
			lastErr = err
		}
	}
	p.handles = make(map[string]*Handle)
	p.metrics.SetOpenDBs(0)

	p.ready = false
	p.log.Info().Msg("Namespace provisioner stopped")
	return lastErr
}

// Ready returns true if the provisioner is ready
func (p *Provisioner) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// DefineRecordShape registers or replaces the record shape of a form's
// namespace and opens its database. Stored records are not migrated.
func (p *Provisioner) DefineRecordShape(ctx context.Context, formID string, version int, fields []schema.Field) (*Handle, error) {
	id := NamespaceID(formID)
	_, span := startSpan(ctx, "define", id,
		attribute.String(tracing.AttrFormID, formID),
		attribute.Int(tracing.AttrFormVersion, version),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if formID == "" {
		err = fmt.Errorf("form id cannot be empty")
		return nil, err
	}

	shape := buildShape(version, fields)
	entry := &metastore.Entry{
		Name:   id,
		FormID: formID,
		Shape:  shape,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	created, err := p.metaStore.Put(entry)
	if err != nil {
		err = fmt.Errorf("failed to register record shape: %w", err)
		return nil, err
	}

	h, err := p.openLocked(id, formID, shape)
	if err != nil {
		return nil, err
	}
	h.setShape(shape)

	p.metrics.RecordProvisioned()
	p.log.Info().
		Str("namespace", id).
		Str("form_id", formID).
		Int("version", version).
		Int("fields", len(shape.Fields)).
		Bool("created", created).
		Msg("Record shape defined")

	return h, nil
}

// Resolve returns the handle of a form's namespace, provisioning it with
// the given field list when it was never defined
func (p *Provisioner) Resolve(ctx context.Context, formID string, version int, fields []schema.Field) (*Handle, error) {
	h, err := p.Lookup(formID)
	if err == nil {
		return h, nil
	}
	var notProvisioned *NotProvisionedError
	if !errors.As(err, &notProvisioned) {
		return nil, err
	}
	return p.DefineRecordShape(ctx, formID, version, fields)
}

// Lookup returns the handle of an already provisioned namespace
func (p *Provisioner) Lookup(formID string) (*Handle, error) {
	id := NamespaceID(formID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[id]; ok {
		return h, nil
	}

	entry, err := p.metaStore.ByForm(formID)
	if err != nil {
		var notFound metastore.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &NotProvisionedError{FormID: formID}
		}
		return nil, fmt.Errorf("failed to look up namespace: %w", err)
	}

	return p.openLocked(entry.Name, formID, entry.Shape)
}

// PurgeTestRecords deletes every test record of a form's namespace and
// returns how many were removed. A namespace that was never provisioned
// holds nothing to purge.
func (p *Provisioner) PurgeTestRecords(ctx context.Context, formID string) (int, error) {
	h, err := p.Lookup(formID)
	if err != nil {
		var notProvisioned *NotProvisionedError
		if errors.As(err, &notProvisioned) {
			return 0, nil
		}
		return 0, err
	}

	removed, err := h.purgeTest(ctx, p.purgeBatchSize)
	if err != nil {
		return removed, err
	}

	p.metrics.RecordPurge(removed)
	p.log.Info().
		Str("namespace", h.ID()).
		Int("removed", removed).
		Msg("Test records purged")

	return removed, nil
}

// Drop closes a namespace, removes its database and unregisters it
func (p *Provisioner) Drop(ctx context.Context, formID string) error {
	id := NamespaceID(formID)
	_, span := startSpan(ctx, "drop", id, attribute.String(tracing.AttrFormID, formID))
	var err error
	defer func() { endSpan(span, err) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[id]; ok {
		if err = h.close(); err != nil {
			return fmt.Errorf("failed to close namespace: %w", err)
		}
		delete(p.handles, id)
		p.metrics.SetOpenDBs(len(p.handles))
	}

	if err = os.RemoveAll(p.namespaceDir(id)); err != nil {
		err = fmt.Errorf("failed to remove namespace data: %w", err)
		return err
	}

	err = p.metaStore.Delete(id)
	var notFound metastore.NotFoundError
	if errors.As(err, &notFound) {
		err = nil
	}
	if err != nil {
		return err
	}

	p.log.Info().Str("namespace", id).Msg("Namespace dropped")
	return nil
}

// Namespaces lists the registered namespaces
func (p *Provisioner) Namespaces() []*metastore.Entry {
	return p.metaStore.List()
}

func (p *Provisioner) namespaceDir(id string) string {
	return filepath.Join(p.baseDir, id)
}

// openLocked returns the cached handle or opens its database; p.mu is held
func (p *Provisioner) openLocked(id, formID string, shape *metastore.RecordShape) (*Handle, error) {
	if h, ok := p.handles[id]; ok {
		return h, nil
	}

	dbDir := filepath.Join(p.namespaceDir(id), "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := pebble.Open(dbDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open Pebble DB: %w", err)
	}

	h := newHandle(id, formID, db, p.envelope, p.metrics)
	h.setShape(shape)
	p.handles[id] = h
	p.metrics.SetOpenDBs(len(p.handles))

	p.log.Debug().Str("namespace", id).Str("dir", dbDir).Msg("Namespace database opened")
	return h, nil
}

// buildShape snapshots the data-bearing fields of a schema
func buildShape(version int, fields []schema.Field) *metastore.RecordShape {
	data := schema.DataFields(fields)
	shape := &metastore.RecordShape{
		FormVersion: version,
		Envelope:    EnvelopeResource,
		Fields:      make([]metastore.FieldShape, 0, len(data)),
		Indexes: []metastore.IndexDirective{
			{Field: "metadata.submittedAt", Descending: true},
			{Field: "status"},
		},
	}
	for _, f := range data {
		shape.Fields = append(shape.Fields, metastore.FieldShape{
			Name:     f.Name,
			Type:     string(f.Type),
			Label:    f.Label,
			Required: f.Required,
		})
	}
	return shape
}

// now is the record clock
var now = func() time.Time {
	return time.Now().UTC()
}
