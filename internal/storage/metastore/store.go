package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/formai/engine/internal/logger"
	"github.com/rs/zerolog"
)

const (
	// CatalogFile is the file the catalog is persisted to
	CatalogFile = "namespaces.json"

	// CatalogVersion is the on-disk document version written by this build
	CatalogVersion = 1
)

type catalogDocument struct {
	Version    int      `json:"version"`
	Namespaces []*Entry `json:"namespaces"`
}

// Store is the namespace catalog. Every mutation is written through to
// disk before it becomes visible; a failed write leaves memory unchanged.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byForm  map[string]string
	path    string
	log     zerolog.Logger
}

// NewStore opens the catalog kept in dir, starting empty when the file
// does not exist yet
func NewStore(dir string) (*Store, error) {
	s := &Store{
		entries: make(map[string]*Entry),
		byForm:  make(map[string]string),
		path:    filepath.Join(dir, CatalogFile),
		log:     logger.WithComponent("metastore"),
	}

	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load namespace catalog: %w", err)
		}
		s.log.Debug().Str("file", s.path).Msg("Namespace catalog not found, starting empty")
	}
	return s, nil
}

// Put registers the namespace or replaces its entry, keeping the original
// creation time. It reports whether the namespace was new.
func (s *Store) Put(entry *Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owned, ok := s.byForm[entry.FormID]; ok && owned != entry.Name {
		return false, FormBoundError{FormID: entry.FormID, Namespace: owned}
	}

	previous, existed := s.entries[entry.Name]
	stored := entry.clone()
	stored.UpdatedAt = time.Now().UTC()
	stored.CreatedAt = stored.UpdatedAt
	if existed {
		stored.CreatedAt = previous.CreatedAt
	}

	if err := s.commit(stored.Name, stored); err != nil {
		return false, err
	}
	s.log.Debug().Str("namespace", stored.Name).Bool("created", !existed).Msg("Namespace entry stored")
	return !existed, nil
}

// ByForm returns the entry of the namespace owned by formID
func (s *Store) ByForm(formID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.byForm[formID]
	if !ok {
		return nil, NotFoundError{Name: "form " + formID}
	}
	return s.entries[name].clone(), nil
}

// List returns copies of every entry ordered by name
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered namespaces
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Delete unregisters the named namespace
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return NotFoundError{Name: name}
	}
	if err := s.commit(name, nil); err != nil {
		return err
	}
	s.log.Info().Str("namespace", name).Msg("Namespace unregistered")
	return nil
}

// commit writes the catalog with name set to entry, or removed when entry
// is nil, then swaps it into memory. Callers hold the write lock.
func (s *Store) commit(name string, entry *Entry) error {
	next := make(map[string]*Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	if entry == nil {
		delete(next, name)
	} else {
		next[name] = entry
	}

	if err := s.write(next); err != nil {
		return err
	}

	s.entries = next
	s.byForm = indexByForm(next)
	return nil
}

func (s *Store) write(entries map[string]*Entry) error {
	doc := catalogDocument{Version: CatalogVersion, Namespaces: make([]*Entry, 0, len(entries))}
	for _, entry := range entries {
		doc.Namespaces = append(doc.Namespaces, entry)
	}
	sort.Slice(doc.Namespaces, func(i, j int) bool { return doc.Namespaces[i].Name < doc.Namespaces[j].Name })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode namespace catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write namespace catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace namespace catalog: %w", err)
	}
	return nil
}

// Verify re-reads the catalog file and checks it holds the same namespaces
// as memory. A missing file is valid only while the catalog is empty.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := readCatalog(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && len(s.entries) == 0 {
			return nil
		}
		return err
	}
	if len(entries) != len(s.entries) {
		return fmt.Errorf("catalog file holds %d namespaces, %d registered", len(entries), len(s.entries))
	}
	for name, entry := range entries {
		current, ok := s.entries[name]
		if !ok || current.FormID != entry.FormID {
			return fmt.Errorf("catalog file disagrees on namespace %s", name)
		}
	}
	return nil
}

func (s *Store) load() error {
	entries, err := readCatalog(s.path)
	if err != nil {
		return err
	}

	s.entries = entries
	s.byForm = indexByForm(entries)
	s.log.Info().Str("file", s.path).Int("namespaces", len(entries)).Msg("Namespace catalog loaded")
	return nil
}

func readCatalog(path string) (map[string]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode namespace catalog: %w", err)
	}
	if doc.Version > CatalogVersion {
		return nil, fmt.Errorf("namespace catalog version %d is newer than supported version %d", doc.Version, CatalogVersion)
	}

	entries := make(map[string]*Entry, len(doc.Namespaces))
	for _, entry := range doc.Namespaces {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("namespace catalog holds an invalid entry: %w", err)
		}
		entries[entry.Name] = entry
	}
	return entries, nil
}

func indexByForm(entries map[string]*Entry) map[string]string {
	idx := make(map[string]string, len(entries))
	for name, entry := range entries {
		idx[entry.FormID] = name
	}
	return idx
}
