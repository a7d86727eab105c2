package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/rs/zerolog"
)

// Storage represents the complete storage system: the namespace registry,
// the per-form submission namespaces and the forms database
type Storage struct {
	paths       *StoragePaths
	metaStore   *metastore.Store
	provisioner *namespace.Provisioner
	formsDB     *sql.DB
	checkpoints *CheckpointManager
	log         zerolog.Logger
	mu          sync.RWMutex
	closed      bool
	ready       bool
}

// New creates a new storage system with the default configuration
func New(dataDir string) (*Storage, error) {
	return NewBuilder().WithDataDir(dataDir).Build()
}

// MetaStore returns the metadata store
func (s *Storage) MetaStore() *metastore.Store {
	return s.metaStore
}

// Provisioner returns the namespace provisioner
func (s *Storage) Provisioner() *namespace.Provisioner {
	return s.provisioner
}

// FormsDB returns the forms database
func (s *Storage) FormsDB() *sql.DB {
	return s.formsDB
}

// Checkpoints returns the checkpoint manager, nil when disabled
func (s *Storage) Checkpoints() *CheckpointManager {
	return s.checkpoints
}

// Paths returns the storage paths
func (s *Storage) Paths() *StoragePaths {
	return s.paths
}

// Start starts the storage components
func (s *Storage) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("storage is closed")
	}
	if s.ready {
		return nil
	}

	if err := s.provisioner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start namespace provisioner: %w", err)
	}

	if s.checkpoints != nil {
		s.checkpoints.Start()
	}

	s.ready = true
	s.log.Info().Str("data_dir", s.paths.BaseDir).Msg("Storage started")
	return nil
}

// Stop stops the storage components, keeping the forms database open
func (s *Storage) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	var lastErr error
	if s.checkpoints != nil {
		if err := s.checkpoints.Stop(); err != nil {
			s.log.Error().Err(err).Msg("Failed to stop checkpoint manager")
			lastErr = err
		}
	}

	if err := s.provisioner.Stop(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to stop namespace provisioner")
		lastErr = err
	}

	s.ready = false
	s.log.Info().Msg("Storage stopped")
	return lastErr
}

// Ready returns true if storage is started
func (s *Storage) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && !s.closed
}

// Close gracefully shuts down the storage system
func (s *Storage) Close(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to stop storage")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.log.Info().Msg("Closing storage...")

	var lastErr error

	if err := s.formsDB.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close forms database")
		lastErr = err
	}

	s.closed = true
	s.log.Info().Msg("Storage closed")

	return lastErr
}

// Validate validates the storage system integrity
func (s *Storage) Validate(ctx context.Context) error {
	if err := validateStorageDirectory(s.paths.BaseDir); err != nil {
		return fmt.Errorf("base directory invalid: %w", err)
	}

	if err := validateStorageDirectory(s.paths.MetadataDir); err != nil {
		return fmt.Errorf("metadata directory invalid: %w", err)
	}

	if err := validateStorageDirectory(s.paths.NamespacesDir); err != nil {
		return fmt.Errorf("namespaces directory invalid: %w", err)
	}

	if err := s.metaStore.Verify(); err != nil {
		return fmt.Errorf("namespace catalog invalid: %w", err)
	}

	if err := s.formsDB.PingContext(ctx); err != nil {
		return fmt.Errorf("forms database unreachable: %w", err)
	}

	return nil
}

// validateStorageDirectory checks if a directory exists and is accessible
func validateStorageDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}
