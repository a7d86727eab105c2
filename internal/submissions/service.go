package submissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "formai.submissions"

// Forms is the part of the form lifecycle the pipeline depends on
type Forms interface {
	Get(ctx context.Context, id string) (*forms.Form, error)
	Hold(ctx context.Context, id string) (*forms.Form, func(), error)
	RecordSubmission(ctx context.Context, id string, at time.Time) error
	RecordSubmissionRemoved(ctx context.Context, id string) error
}

// Namespaces resolves the submission namespace of a form
type Namespaces interface {
	Resolve(ctx context.Context, formID string, version int, fields []schema.Field) (*namespace.Handle, error)
}

// CreateInput is an incoming submission
type CreateInput struct {
	Data     map[string]any     `json:"data"`
	Metadata namespace.Metadata `json:"metadata"`
	Files    []namespace.File   `json:"files,omitempty"`
	// Test marks the submission as test data, purged on publish
	Test bool `json:"test"`
}

// Service accepts, stores, lists, mutates and exports the submissions of forms
type Service struct {
	forms      Forms
	namespaces Namespaces
	validator  *Validator
	metrics    *metrics.SubmissionMetrics
	log        zerolog.Logger
}

// NewService creates a submission service
func NewService(f Forms, ns Namespaces, submissionMetrics ...*metrics.SubmissionMetrics) *Service {
	var m *metrics.SubmissionMetrics
	if len(submissionMetrics) > 0 {
		m = submissionMetrics[0]
	}
	return &Service{
		forms:      f,
		namespaces: ns,
		validator:  NewValidator(),
		metrics:    m,
		log:        logger.WithComponent("submissions"),
	}
}

// Create validates a submission against the current schema of the form,
// stores it in the form's namespace and counts it
func (s *Service) Create(ctx context.Context, formID string, input CreateInput) (_ *namespace.Record, err error) {
	ctx, span := startSpan(ctx, "create", formID)
	start := time.Now()
	defer func() { endSpan(span, err) }()

	// the form cannot be published or closed until the record is stored
	form, release, err := s.forms.Hold(ctx, formID)
	if err != nil {
		s.metrics.RecordRejected("not_found", time.Since(start))
		return nil, err
	}
	defer release()

	if !form.Status.AcceptsSubmissions() {
		s.metrics.RecordRejected("closed", time.Since(start))
		return nil, &SubmissionsClosedError{FormID: formID, Status: form.Status}
	}

	if err := s.validator.Validate(form.Schema.Fields, input.Data); err != nil {
		s.metrics.RecordRejected("invalid", time.Since(start))
		return nil, err
	}

	h, err := s.namespaces.Resolve(ctx, form.ID, form.Version, form.Schema.Fields)
	if err != nil {
		s.metrics.RecordRejected("error", time.Since(start))
		return nil, fmt.Errorf("failed to resolve namespace: %w", err)
	}

	rec := &namespace.Record{
		FormID:      form.ID,
		FormVersion: form.Version,
		Data:        input.Data,
		Metadata:    input.Metadata,
		Status:      namespace.StatusSubmitted,
		Files:       input.Files,
		IsTest:      input.Test || form.Status == forms.StatusTesting,
	}
	rec.Metadata.SubmittedAt = time.Now().UTC()
	span.SetAttributes(
		attribute.Int(tracing.AttrFormVersion, form.Version),
		attribute.Bool(tracing.AttrIsTest, rec.IsTest),
	)

	if err := h.Insert(ctx, rec); err != nil {
		s.metrics.RecordRejected("error", time.Since(start))
		return nil, err
	}

	if err := s.forms.RecordSubmission(ctx, form.ID, rec.Metadata.SubmittedAt); err != nil {
		s.log.Error().Err(err).
			Str("form_id", form.ID).
			Str("record_id", rec.ID).
			Msg("Failed to count submission")
		// an uncounted record must not outlive the failed request
		if delErr := h.Delete(ctx, rec.ID); delErr != nil {
			s.log.Error().Err(delErr).
				Str("form_id", form.ID).
				Str("record_id", rec.ID).
				Msg("Failed to remove uncounted submission")
		}
		s.metrics.RecordRejected("error", time.Since(start))
		return nil, fmt.Errorf("failed to count submission: %w", err)
	}

	s.metrics.RecordAccepted(rec.IsTest, time.Since(start))
	s.log.Info().
		Str("form_id", form.ID).
		Str("record_id", rec.ID).
		Bool("is_test", rec.IsTest).
		Msg("Submission created")

	return rec, nil
}

// List returns a page of a form's submissions, most recent first.
// Test submissions are excluded unless opts.IncludeTest is set.
func (s *Service) List(ctx context.Context, formID string, opts namespace.ListOptions) (*namespace.ListResult, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, &namespace.InvalidStatusError{Status: opts.Status}
	}
	h, err := s.resolve(ctx, formID)
	if err != nil {
		return nil, err
	}
	return h.List(ctx, opts)
}

// Get returns one submission of a form
func (s *Service) Get(ctx context.Context, formID, recordID string) (*namespace.Record, error) {
	h, err := s.resolve(ctx, formID)
	if err != nil {
		return nil, err
	}
	return h.Get(ctx, recordID)
}

// UpdateStatus moves a submission to another review status
func (s *Service) UpdateStatus(ctx context.Context, formID, recordID string, status namespace.Status) (*namespace.Record, error) {
	if !status.Valid() {
		return nil, &namespace.InvalidStatusError{Status: status}
	}
	h, err := s.resolve(ctx, formID)
	if err != nil {
		return nil, err
	}
	rec, err := h.UpdateStatus(ctx, recordID, status)
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("form_id", formID).
		Str("record_id", recordID).
		Str("status", string(status)).
		Msg("Submission status updated")
	return rec, nil
}

// Delete removes a submission and uncounts it
func (s *Service) Delete(ctx context.Context, formID, recordID string) (err error) {
	ctx, span := startSpan(ctx, "delete", formID)
	defer func() { endSpan(span, err) }()

	h, err := s.resolve(ctx, formID)
	if err != nil {
		return err
	}
	if err := h.Delete(ctx, recordID); err != nil {
		return err
	}
	if err := s.forms.RecordSubmissionRemoved(ctx, formID); err != nil {
		return fmt.Errorf("failed to uncount submission: %w", err)
	}

	s.metrics.RecordDeleted()
	s.log.Info().
		Str("form_id", formID).
		Str("record_id", recordID).
		Msg("Submission deleted")
	return nil
}

// resolve looks up the form and opens its namespace
func (s *Service) resolve(ctx context.Context, formID string) (*namespace.Handle, error) {
	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	h, err := s.namespaces.Resolve(ctx, form.ID, form.Version, form.Schema.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve namespace: %w", err)
	}
	return h, nil
}

// IsNotFound reports whether err means a missing form or submission
func IsNotFound(err error) bool {
	var formNotFound *forms.NotFoundError
	var recordNotFound *namespace.RecordNotFoundError
	return errors.As(err, &formNotFound) || errors.As(err, &recordNotFound)
}

func startSpan(ctx context.Context, operation, formID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "submissions."+operation)
	span.SetAttributes(
		attribute.String(tracing.AttrFormID, formID),
		attribute.String(tracing.AttrOperation, operation),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
