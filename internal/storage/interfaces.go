package storage

import (
	"context"
	"database/sql"

	"github.com/formai/engine/internal/storage/metastore"
	"github.com/formai/engine/internal/storage/namespace"
)

// Lifecycle manages component lifecycle
type Lifecycle interface {
	// Start initializes and starts the component
	Start(ctx context.Context) error
	// Stop gracefully stops the component
	Stop(ctx context.Context) error
	// Ready returns true if the component is ready
	Ready() bool
}

// StorageBackend is the storage surface the services and servers depend on
type StorageBackend interface {
	Lifecycle
	// MetaStore returns the namespace registry
	MetaStore() *metastore.Store
	// Provisioner returns the namespace provisioner
	Provisioner() *namespace.Provisioner
	// FormsDB returns the forms database
	FormsDB() *sql.DB
	// Close releases every resource
	Close(ctx context.Context) error
}

var (
	_ StorageBackend = (*Storage)(nil)
	_ Lifecycle      = (*namespace.Provisioner)(nil)
)
