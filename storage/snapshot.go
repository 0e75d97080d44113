package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"realestate-lt/models"
)

// SnapshotFile stores the raw acquisition output as a single JSON array.
// Every Write fully replaces the previous snapshot. It is safe for concurrent use.
type SnapshotFile struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotFile returns a snapshot bound to path. Nothing is touched on disk
// until the first Write.
func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path}
}

func (s *SnapshotFile) Path() string { return s.path }

// Write serialises listings to a temporary file in the target directory and
// renames it over the snapshot, so readers never observe a partial file.
func (s *SnapshotFile) Write(listings []*models.RawListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if listings == nil {
		listings = []*models.RawListing{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(listings); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("snapshot: replace %q: %w", s.path, err)
	}
	return nil
}

// Read loads the current snapshot.
func (s *SnapshotFile) Read() ([]*models.RawListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ReadSnapshot(s.path)
}

// ReadSnapshot decodes a JSON array of raw listings from path.
func ReadSnapshot(path string) ([]*models.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %q: %w", path, err)
	}
	defer f.Close()

	var listings []*models.RawListing
	if err := json.NewDecoder(f).Decode(&listings); err != nil {
		return nil, fmt.Errorf("snapshot: decode %q: %w", path, err)
	}
	return listings, nil
}
