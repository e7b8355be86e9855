package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileTier persists one JSON snapshot per (collector, request) so warm
// data survives restarts. Writes go through a temp file and an atomic
// rename.
type FileTier struct {
	dir string
}

// NewFileTier creates the snapshot directory if needed.
func NewFileTier(dir string) (*FileTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileTier{dir: dir}, nil
}

func (f *FileTier) path(collectorKey, requestHash string) string {
	return filepath.Join(f.dir, collectorKey, requestHash+".json")
}

// Get loads the snapshot for a request, if one exists.
func (f *FileTier) Get(collectorKey, requestHash string) (*Entry, bool) {
	data, err := os.ReadFile(f.path(collectorKey, requestHash))
	if err != nil {
		return nil, false
	}

	entry := &Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, false
	}
	return entry, true
}

// Set writes the snapshot atomically, replacing any prior one.
func (f *FileTier) Set(entry *Entry) error {
	path := f.path(entry.CollectorKey, entry.RequestHash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create collector dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}

	return nil
}
