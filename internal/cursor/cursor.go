// Package cursor persists the watcher's last-processed row id. The cursor
// is the ingestion path's only durable state: it lives in a small state file
// outside the message store and survives process restarts.
package cursor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// stateKey is the fixed key the cursor is stored under. Keeping the file a
// keyed document leaves room for future state without a format change.
const stateKey = "last_row_id"

// Store reads and writes the cursor at a fixed file path.
//
// Store does no locking of its own: the watcher is the sole writer, and it
// already serializes all cursor access on its run goroutine.
type Store struct {
	path string
}

// NewStore returns a cursor store backed by the file at path. The file is
// created on first Set; a missing file reads as "never persisted".
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the persisted cursor. ok is false if no cursor has ever been
// persisted (missing file or missing key).
func (s *Store) Get() (value int64, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read cursor state: %w", err)
	}

	var state map[string]int64
	if err := yaml.Unmarshal(data, &state); err != nil {
		return 0, false, fmt.Errorf("parse cursor state: %w", err)
	}
	v, present := state[stateKey]
	return v, present, nil
}

// Set persists the cursor. The write is atomic (temp file + rename) so a
// crash mid-write never leaves a torn state file.
func (s *Store) Set(value int64) error {
	data, err := yaml.Marshal(map[string]int64{stateKey: value})
	if err != nil {
		return fmt.Errorf("encode cursor state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cursor state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit cursor state: %w", err)
	}
	return nil
}

// Reset removes the persisted cursor entirely, returning the store to the
// never-persisted state. Exposed for testing and support tooling; the next
// watcher start re-initializes from the store's current maximum id.
func (s *Store) Reset() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset cursor state: %w", err)
	}
	return nil
}
