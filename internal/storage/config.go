package storage

import (
	"time"

	"github.com/formai/engine/internal/storage/namespace"
)

// Config holds configuration for the storage system
type Config struct {
	// DataDir is the base directory for storage
	DataDir string

	// FormsDB is the forms database path, <DataDir>/forms.db when empty
	FormsDB string

	// PurgeBatchSize is the number of test records deleted per commit
	PurgeBatchSize int

	// CheckpointInterval is how often namespace checkpoints are written;
	// zero disables them
	CheckpointInterval time.Duration

	// EnableMetrics enables metrics collection
	EnableMetrics bool
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:            "./data",
		PurgeBatchSize:     namespace.DefaultPurgeBatchSize,
		CheckpointInterval: DefaultCheckpointInterval,
		EnableMetrics:      true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return InvalidConfigError{Field: "DataDir", Reason: "cannot be empty"}
	}
	if c.PurgeBatchSize <= 0 {
		return InvalidConfigError{Field: "PurgeBatchSize", Reason: "must be greater than zero"}
	}
	if c.CheckpointInterval < 0 {
		return InvalidConfigError{Field: "CheckpointInterval", Reason: "cannot be negative"}
	}
	return nil
}

// InvalidConfigError indicates an invalid configuration
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e InvalidConfigError) Error() string {
	return "invalid config: " + e.Field + ": " + e.Reason
}
