// Package store provides durable local key-value persistence.
//
// Values are stored as plain JSON files under a state directory, one file
// per key, so each key is independently readable without any migration
// step. Writes go through a temp file and rename.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotFound = errors.New("key not found")
)

// Store is a file-backed key-value store.
type Store struct {
	dir string
}

// Open opens (creating if needed) a store rooted at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}
	return &Store{dir: dir}, nil
}

// Get reads the value stored under key into v.
// Returns ErrNotFound if the key has never been written.
func (s *Store) Get(key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "failed to read key %q", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode key %q", key)
	}
	return nil
}

// Put stores v under key, replacing any previous value.
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode key %q", key)
	}

	// Write-then-rename so a crash never leaves a truncated value
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write key %q", key)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return errors.Wrapf(err, "failed to commit key %q", key)
	}
	return nil
}

// Delete removes the value stored under key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete key %q", key)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
