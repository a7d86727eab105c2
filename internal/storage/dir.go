package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SubDirectories defines the storage subdirectories
	DirNamespaces  = "namespaces"
	DirMetadata    = "metadata"
	DirCheckpoints = "checkpoints"

	// FormsDBFile is the default forms database file name
	FormsDBFile = "forms.db"
)

// StoragePaths holds all storage directory paths
type StoragePaths struct {
	BaseDir        string
	NamespacesDir  string
	MetadataDir    string
	CheckpointsDir string
	FormsDB        string
}

// InitDirectories creates and validates all storage directories. formsDB
// defaults to <baseDir>/forms.db when empty.
func InitDirectories(baseDir, formsDB string) (*StoragePaths, error) {
	baseDir = filepath.Clean(baseDir)
	if formsDB == "" {
		formsDB = filepath.Join(baseDir, FormsDBFile)
	}

	paths := &StoragePaths{
		BaseDir:        baseDir,
		NamespacesDir:  filepath.Join(baseDir, DirNamespaces),
		MetadataDir:    filepath.Join(baseDir, DirMetadata),
		CheckpointsDir: filepath.Join(baseDir, DirCheckpoints),
		FormsDB:        formsDB,
	}

	dirs := []string{
		paths.BaseDir,
		paths.NamespacesDir,
		paths.MetadataDir,
		paths.CheckpointsDir,
		filepath.Dir(paths.FormsDB),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	for _, dir := range dirs {
		if err := validateDirectory(dir); err != nil {
			return nil, fmt.Errorf("directory validation failed for %s: %w", dir, err)
		}
	}

	return paths, nil
}

// validateDirectory checks if a directory exists and is writable
func validateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory does not exist: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}

// CleanupTestDirectories removes test directories (for testing only)
func CleanupTestDirectories(baseDir string) error {
	if baseDir == "" {
		return fmt.Errorf("empty base directory, refusing to clean")
	}

	if !filepath.IsAbs(baseDir) {
		return fmt.Errorf("base directory must be absolute path: %s", baseDir)
	}

	return os.RemoveAll(baseDir)
}
