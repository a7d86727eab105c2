package storage

import (
	"context"
	"fmt"

	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/rs/zerolog"
)

// Builder provides a fluent interface for building Storage instances
type Builder struct {
	config    *Config
	metaStore *metastore.Store
	nsMetrics *metrics.NamespaceMetrics
	log       zerolog.Logger
}

// NewBuilder creates a new Storage builder
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
		log:    logger.WithComponent("storage.builder"),
	}
}

// WithConfig sets the configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithDataDir sets the data directory (convenience method)
func (b *Builder) WithDataDir(dataDir string) *Builder {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	b.config.DataDir = dataDir
	return b
}

// WithMetaStore sets a custom metadata store (optional, will create default if not set)
func (b *Builder) WithMetaStore(metaStore *metastore.Store) *Builder {
	b.metaStore = metaStore
	return b
}

// WithNamespaceMetrics sets the namespace metrics (optional)
func (b *Builder) WithNamespaceMetrics(m *metrics.NamespaceMetrics) *Builder {
	b.nsMetrics = m
	return b
}

// Build creates and initializes the Storage instance
func (b *Builder) Build() (*Storage, error) {
	if b.config == nil {
		b.config = DefaultConfig()
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths, err := InitDirectories(b.config.DataDir, b.config.FormsDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize directories: %w", err)
	}

	if b.metaStore == nil {
		metaStore, err := metastore.NewStore(paths.MetadataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata store: %w", err)
		}
		b.metaStore = metaStore
	}

	var nsMetrics *metrics.NamespaceMetrics
	if b.config.EnableMetrics {
		nsMetrics = b.nsMetrics
	}

	provisioner, err := namespace.NewProvisioner(b.metaStore, paths.NamespacesDir, b.config.PurgeBatchSize, nsMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create namespace provisioner: %w", err)
	}

	formsDB, err := openFormsDB(paths.FormsDB)
	if err != nil {
		return nil, err
	}

	storage := &Storage{
		paths:       paths,
		metaStore:   b.metaStore,
		provisioner: provisioner,
		formsDB:     formsDB,
		log:         logger.WithComponent("storage"),
	}
	if b.config.CheckpointInterval > 0 {
		storage.checkpoints = NewCheckpointManager(storage, paths.CheckpointsDir, b.config.CheckpointInterval)
	}

	b.log.Info().
		Str("data_dir", paths.BaseDir).
		Str("forms_db", paths.FormsDB).
		Msg("Storage built successfully")

	return storage, nil
}

// BuildAndStart creates, initializes, and starts the Storage instance
func (b *Builder) BuildAndStart(ctx context.Context) (*Storage, error) {
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}

	if err := storage.Start(ctx); err != nil {
		storage.Close(ctx)
		return nil, fmt.Errorf("failed to start storage: %w", err)
	}

	return storage, nil
}
