package generation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/schema"
	"github.com/rs/zerolog"
)

const (
	modeGenerate = "generate"
	modeRefine   = "refine"
)

// Config holds the adapter settings
type Config struct {
	Model string
	// Timeout bounds each attempt
	Timeout time.Duration
	// MaxRetries is the number of extra attempts Generate makes
	MaxRetries int
}

// DefaultConfig returns the default adapter settings
func DefaultConfig() Config {
	return Config{
		Model:      "claude-sonnet-4-5-20250929",
		Timeout:    90 * time.Second,
		MaxRetries: 2,
	}
}

// Result is a validated definition together with the text it was read from
type Result struct {
	Definition *schema.Definition
	Raw        string
	Model      string
}

// Adapter turns natural language into validated form definitions
type Adapter struct {
	generator TextGenerator
	validator *schema.Validator
	config    Config
	metrics   *metrics.GenerationMetrics
	log       zerolog.Logger
}

// NewAdapter creates a generation adapter
func NewAdapter(generator TextGenerator, validator *schema.Validator, config Config, genMetrics ...*metrics.GenerationMetrics) *Adapter {
	var m *metrics.GenerationMetrics
	if len(genMetrics) > 0 {
		m = genMetrics[0]
	}
	if validator == nil {
		validator = schema.NewValidator()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Adapter{
		generator: generator,
		validator: validator,
		config:    config,
		metrics:   m,
		log:       logger.WithComponent("generation"),
	}
}

// Generate produces a definition from a description. Any failed attempt is
// retried immediately, up to MaxRetries times; the last error is returned
// unchanged.
func (a *Adapter) Generate(ctx context.Context, description string) (_ *Result, err error) {
	start := time.Now()
	defer func() { a.metrics.RecordRequest(modeGenerate, err, time.Since(start)) }()

	attempt := 0
	return backoff.Retry(ctx, func() (*Result, error) {
		attempt++
		res, err := a.attempt(ctx, modeGenerate, description)
		if err != nil {
			a.log.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_attempts", a.config.MaxRetries+1).
				Msg("Schema generation attempt failed")
			return nil, err
		}
		a.log.Info().
			Str("name", res.Definition.Name).
			Int("field_count", len(res.Definition.Fields)).
			Int("attempt", attempt).
			Msg("Form generated")
		return res, nil
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(a.config.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
	)
}

// Refine revises an existing definition according to instructions. It makes
// a single attempt.
func (a *Adapter) Refine(ctx context.Context, current *schema.Definition, instructions string) (_ *Result, err error) {
	start := time.Now()
	defer func() { a.metrics.RecordRequest(modeRefine, err, time.Since(start)) }()

	prompt, err := refinePrompt(current, instructions)
	if err != nil {
		return nil, err
	}
	return a.attempt(ctx, modeRefine, prompt)
}

func (a *Adapter) attempt(ctx context.Context, mode, user string) (*Result, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	raw, err := a.generator.Generate(ctx, SystemPrompt(), user)
	if err != nil {
		var malformed *MalformedOutputError
		if !errors.As(err, &malformed) {
			var upstream *UpstreamUnavailableError
			if !errors.As(err, &upstream) {
				err = &UpstreamUnavailableError{Err: err}
			}
		}
		a.metrics.RecordAttempt(mode, reason(err))
		return nil, err
	}

	payload := stripFences(raw)
	if !json.Valid([]byte(payload)) {
		err := &MalformedOutputError{Reason: "output is not a JSON document"}
		a.metrics.RecordAttempt(mode, reason(err))
		return nil, err
	}

	def, err := a.validator.Validate([]byte(payload))
	if err != nil {
		a.metrics.RecordAttempt(mode, reason(err))
		return nil, err
	}
	schema.Normalize(&def.Schema)

	a.metrics.RecordAttempt(mode, "ok")
	return &Result{Definition: def, Raw: raw, Model: a.config.Model}, nil
}

func reason(err error) string {
	var (
		upstream  *UpstreamUnavailableError
		malformed *MalformedOutputError
		invalid   *schema.InvalidError
	)
	switch {
	case errors.As(err, &upstream):
		return "upstream"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &invalid):
		return "schema_invalid"
	}
	return "error"
}
