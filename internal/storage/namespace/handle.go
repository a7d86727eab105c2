package namespace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/formai/engine/internal/filter"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/tracing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
)

// Handle is an open submission namespace. It is safe for concurrent use.
type Handle struct {
	id       string
	formID   string
	db       *pebble.DB
	envelope *jsonschema.Schema
	metrics  *metrics.NamespaceMetrics
	log      zerolog.Logger

	// writeMu serializes read-modify-write sequences on the index keys
	writeMu sync.Mutex

	shapeMu sync.RWMutex
	shape   *metastore.RecordShape

	closeMu sync.RWMutex
	closed  bool
}

func newHandle(id, formID string, db *pebble.DB, envelope *jsonschema.Schema, nm *metrics.NamespaceMetrics) *Handle {
	return &Handle{
		id:       id,
		formID:   formID,
		db:       db,
		envelope: envelope,
		metrics:  nm,
		log:      logger.WithForm("namespace", formID),
	}
}

// ID returns the namespace identifier
func (h *Handle) ID() string {
	return h.id
}

// FormID returns the owning form
func (h *Handle) FormID() string {
	return h.formID
}

// Shape returns a copy of the registered record shape
func (h *Handle) Shape() metastore.RecordShape {
	h.shapeMu.RLock()
	defer h.shapeMu.RUnlock()

	if h.shape == nil {
		return metastore.RecordShape{}
	}
	shape := *h.shape
	shape.Fields = append([]metastore.FieldShape(nil), h.shape.Fields...)
	shape.Indexes = append([]metastore.IndexDirective(nil), h.shape.Indexes...)
	return shape
}

func (h *Handle) setShape(shape *metastore.RecordShape) {
	if shape == nil {
		return
	}
	h.shapeMu.Lock()
	h.shape = shape
	h.shapeMu.Unlock()
}

// Insert stores a new record. Missing id, status, source and submission
// time are filled in; the record must fit the record envelope.
func (h *Handle) Insert(ctx context.Context, rec *Record) (err error) {
	_, span := startSpan(ctx, "insert", h.id, attribute.Bool(tracing.AttrIsTest, rec.IsTest))
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("insert", err, time.Since(start))
		endSpan(span, err)
	}()

	if err := h.acquire(); err != nil {
		return err
	}
	defer h.release()

	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		rec.ID = id.String()
	}
	if rec.FormID == "" {
		rec.FormID = h.formID
	}
	if rec.FormID != h.formID {
		return &InvalidRecordError{Path: "formId", Reason: fmt.Sprintf("record belongs to form %s", rec.FormID)}
	}
	if rec.Status == "" {
		rec.Status = StatusSubmitted
	}
	if rec.Metadata.Source == "" {
		rec.Metadata.Source = SourceWeb
	}
	if rec.Metadata.SubmittedAt.IsZero() {
		rec.Metadata.SubmittedAt = now()
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	span.SetAttributes(attribute.String(tracing.AttrRecordID, rec.ID))

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := checkEnvelope(h.envelope, encoded); err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if _, closer, getErr := h.db.Get(recordKey(rec.ID)); getErr == nil {
		closer.Close()
		return &InvalidRecordError{Path: "id", Reason: fmt.Sprintf("record %s already exists", rec.ID)}
	} else if !errors.Is(getErr, pebble.ErrNotFound) {
		return fmt.Errorf("failed to check record: %w", getErr)
	}

	batch := h.db.NewBatch()
	defer batch.Close()

	batch.Set(recordKey(rec.ID), encoded, nil)
	batch.Set(timeIndexKey(rec.Metadata.SubmittedAt, rec.ID), nil, nil)
	batch.Set(statusIndexKey(rec.Status, rec.Metadata.SubmittedAt, rec.ID), nil, nil)

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	h.log.Debug().Str("record_id", rec.ID).Bool("is_test", rec.IsTest).Msg("Record inserted")
	return nil
}

// Get returns a record by id
func (h *Handle) Get(ctx context.Context, id string) (rec *Record, err error) {
	_, span := startSpan(ctx, "get", h.id, attribute.String(tracing.AttrRecordID, id))
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("get", err, time.Since(start))
		endSpan(span, err)
	}()

	if err := h.acquire(); err != nil {
		return nil, err
	}
	defer h.release()

	return h.get(id)
}

func (h *Handle) get(id string) (*Record, error) {
	if id == "" {
		return nil, &RecordNotFoundError{Namespace: h.id, RecordID: id}
	}

	value, closer, err := h.db.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, &RecordNotFoundError{Namespace: h.id, RecordID: id}
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns a page of records ordered by submission time, newest first
func (h *Handle) List(ctx context.Context, opts ListOptions) (result *ListResult, err error) {
	_, span := startSpan(ctx, "list", h.id, attribute.String(tracing.AttrStatus, string(opts.Status)))
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("list", err, time.Since(start))
		endSpan(span, err)
	}()

	opts = opts.normalize()

	if opts.Status != "" && !opts.Status.Valid() {
		return nil, &InvalidStatusError{Status: opts.Status}
	}

	var expr filter.Expression
	if opts.Filter != "" {
		expr, err = filter.Parse(opts.Filter)
		if err != nil {
			err = &InvalidFilterError{Expression: opts.Filter, Err: err}
			return nil, err
		}
		if expr != nil {
			span.SetAttributes(attribute.String(tracing.AttrFilter, expr.String()))
		}
	}

	if err := h.acquire(); err != nil {
		return nil, err
	}
	defer h.release()

	prefix := prefixTimeIndex
	if opts.Status != "" {
		prefix = statusPrefix(opts.Status)
	}

	result = &ListResult{
		Records: make([]*Record, 0, opts.Limit),
		Page:    opts.Page,
		Limit:   opts.Limit,
	}
	skip := (opts.Page - 1) * opts.Limit

	err = h.iterate(prefix, func(rec *Record) error {
		if rec.IsTest && !opts.IncludeTest {
			return nil
		}
		if expr != nil {
			ok, matchErr := filter.Match(expr, filterContext(rec))
			if matchErr != nil || !ok {
				return nil
			}
		}

		result.Total++
		if result.Total > skip && len(result.Records) < opts.Limit {
			result.Records = append(result.Records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrRecordCount, result.Total))
	return result, nil
}

// Scan calls fn for every record, newest first, stopping at the first error
func (h *Handle) Scan(ctx context.Context, fn func(*Record) error) (err error) {
	_, span := startSpan(ctx, "scan", h.id)
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("scan", err, time.Since(start))
		endSpan(span, err)
	}()

	if err := h.acquire(); err != nil {
		return err
	}
	defer h.release()

	return h.iterate(prefixTimeIndex, fn)
}

// Count returns the number of stored records, test records included
func (h *Handle) Count(ctx context.Context) (int, error) {
	if err := h.acquire(); err != nil {
		return 0, err
	}
	defer h.release()

	prefix := []byte(prefixRecord)
	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}

// UpdateStatus changes the status of a record and returns the result
func (h *Handle) UpdateStatus(ctx context.Context, id string, status Status) (rec *Record, err error) {
	_, span := startSpan(ctx, "update_status", h.id,
		attribute.String(tracing.AttrRecordID, id),
		attribute.String(tracing.AttrStatus, string(status)),
	)
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("update_status", err, time.Since(start))
		endSpan(span, err)
	}()

	if !status.Valid() {
		return nil, &InvalidStatusError{Status: status}
	}

	if err := h.acquire(); err != nil {
		return nil, err
	}
	defer h.release()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	rec, err = h.get(id)
	if err != nil {
		return nil, err
	}
	previous := rec.Status
	if previous == status {
		return rec, nil
	}
	rec.Status = status

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	batch := h.db.NewBatch()
	defer batch.Close()

	batch.Set(recordKey(id), encoded, nil)
	batch.Delete(statusIndexKey(previous, rec.Metadata.SubmittedAt, id), nil)
	batch.Set(statusIndexKey(status, rec.Metadata.SubmittedAt, id), nil, nil)

	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	h.log.Debug().
		Str("record_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("Record status updated")

	return rec, nil
}

// Delete removes a record
func (h *Handle) Delete(ctx context.Context, id string) (err error) {
	_, span := startSpan(ctx, "delete", h.id, attribute.String(tracing.AttrRecordID, id))
	start := time.Now()
	defer func() {
		h.metrics.RecordOperation("delete", err, time.Since(start))
		endSpan(span, err)
	}()

	if err := h.acquire(); err != nil {
		return err
	}
	defer h.release()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	rec, err := h.get(id)
	if err != nil {
		return err
	}

	batch := h.db.NewBatch()
	defer batch.Close()

	deleteRecord(batch, rec)
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	h.log.Debug().Str("record_id", id).Msg("Record deleted")
	return nil
}

// purgeTest deletes every test record, committing every batchSize records
func (h *Handle) purgeTest(ctx context.Context, batchSize int) (removed int, err error) {
	_, span := startSpan(ctx, "purge_test", h.id)
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int(tracing.AttrRecordCount, removed))
		h.metrics.RecordOperation("purge_test", err, time.Since(start))
		endSpan(span, err)
	}()

	if err := h.acquire(); err != nil {
		return 0, err
	}
	defer h.release()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var victims []*Record
	err = h.iterate(prefixTimeIndex, func(rec *Record) error {
		if rec.IsTest {
			victims = append(victims, rec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for len(victims) > 0 {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		n := batchSize
		if n > len(victims) {
			n = len(victims)
		}

		batch := h.db.NewBatch()
		for _, rec := range victims[:n] {
			deleteRecord(batch, rec)
		}
		commitErr := batch.Commit(pebble.Sync)
		batch.Close()
		if commitErr != nil {
			return removed, fmt.Errorf("failed to purge test records: %w", commitErr)
		}

		removed += n
		victims = victims[n:]
	}

	return removed, nil
}

// iterate walks an index prefix in key order and decodes each record
func (h *Handle) iterate(prefix string, fn func(*Record) error) error {
	lower := []byte(prefix)
	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upperBound(lower),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id := idFromIndexKey(iter.Key(), prefix)
		if id == "" {
			continue
		}

		rec, err := h.get(id)
		if err != nil {
			var notFound *RecordNotFoundError
			if errors.As(err, &notFound) {
				h.log.Warn().Str("record_id", id).Msg("Index entry without record")
				continue
			}
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}

	return iter.Error()
}

func deleteRecord(batch *pebble.Batch, rec *Record) {
	batch.Delete(recordKey(rec.ID), nil)
	batch.Delete(timeIndexKey(rec.Metadata.SubmittedAt, rec.ID), nil)
	batch.Delete(statusIndexKey(rec.Status, rec.Metadata.SubmittedAt, rec.ID), nil)
}

// filterContext exposes a record to filter expressions
func filterContext(rec *Record) filter.Context {
	data := make(map[string]interface{}, len(rec.Data))
	for k, v := range rec.Data {
		data[k] = v
	}
	return filter.Context{
		"id":           rec.ID,
		"data":         data,
		"status":       string(rec.Status),
		"is_test":      rec.IsTest,
		"form_version": rec.FormVersion,
		"source":       string(rec.Metadata.Source),
	}
}

// acquire guards against use after close
func (h *Handle) acquire() error {
	h.closeMu.RLock()
	if h.closed {
		h.closeMu.RUnlock()
		return &NotProvisionedError{FormID: h.formID}
	}
	return nil
}

func (h *Handle) release() {
	h.closeMu.RUnlock()
}

func (h *Handle) close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}
