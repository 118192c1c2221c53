// Package storage is the durable client-side key-value state: cached
// coordinates, grid placements, pinned chat ids, detected city. Entries are
// JSON blobs inside a single file; malformed or missing data degrades to
// "not found" so callers fall back to defaults instead of crashing.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys owned by the live core.
const (
	KeyCachedCoordinate = "cached_coordinate"
	KeyGridPlacements   = "grid_placements"
	KeyPinnedChats      = "pinned_chats"
	KeyDetectedCity     = "detected_city"
)

// Store is a file-backed JSON key-value store. Writes are synchronous so
// state survives an abrupt exit.
type Store struct {
	path string
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads the store at path, creating parent directories as needed.
// A missing or unreadable file yields an empty store, not an error.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: path, data: make(map[string]json.RawMessage)}
	if raw, err := os.ReadFile(path); err == nil {
		// Corrupt files are discarded wholesale; individual entries are
		// still validated on Get.
		_ = json.Unmarshal(raw, &s.data)
	}
	if s.data == nil {
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get unmarshals the entry for key into out. Returns false when the key is
// absent or its value does not decode into out.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Put stores v under key and flushes to disk.
func (s *Store) Put(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flushLocked()
}

// Delete removes key and flushes to disk.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
