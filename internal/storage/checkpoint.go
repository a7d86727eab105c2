package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointVersion is the current checkpoint file format
const CheckpointVersion = 1

// Checkpoint is a point-in-time summary of the submission namespaces
type Checkpoint struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// Forms is the number of stored forms, -1 when the forms table is absent
	Forms int `json:"forms"`

	// Namespaces maps a namespace id to its state
	Namespaces map[string]*NamespaceCheckpoint `json:"namespaces"`
}

// NamespaceCheckpoint is the recorded state of one namespace
type NamespaceCheckpoint struct {
	FormID      string `json:"form_id"`
	FormVersion int    `json:"form_version"`
	Fields      int    `json:"fields"`
	Records     int    `json:"records"`
}

// NewCheckpoint creates an empty checkpoint stamped now
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version:    CheckpointVersion,
		Timestamp:  time.Now().UTC(),
		Namespaces: make(map[string]*NamespaceCheckpoint),
	}
}

// Records returns the number of records across all namespaces
func (c *Checkpoint) Records() int {
	total := 0
	for _, ns := range c.Namespaces {
		total += ns.Records
	}
	return total
}

// Save saves the checkpoint to a file atomically
func (c *Checkpoint) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to temp file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		//nolint:errcheck // best effort cleanup
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}

// LoadCheckpoint loads a checkpoint from a file
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if checkpoint.Version > CheckpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}
	if checkpoint.Namespaces == nil {
		checkpoint.Namespaces = make(map[string]*NamespaceCheckpoint)
	}

	return &checkpoint, nil
}
