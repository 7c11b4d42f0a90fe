// Package store persists manager state as top-level keys of one JSON document:
//
//	{ "servers": [ ... ], "settings": { ... }, "initialized": true }
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyServers     = "servers"
	KeySettings    = "settings"
	KeyInitialized = "initialized"
)

// Store is a synchronous key/value store.
// Get decodes the value stored under key into v and reports whether it existed.
type Store interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
}

// FileStore keeps all keys in a single JSON file, rewritten on every Set.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   map[string]json.RawMessage
}

// NewFileStore returns a store backed by the file at path.
// The file is read lazily and created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Get implements Store.
func (s *FileStore) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return false, err
	}
	raw, ok := s.data[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q from %s: %w", key, s.path, err)
	}
	return true, nil
}

// Set implements Store.
func (s *FileStore) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}

	prev, had := s.data[key]
	s.data[key] = raw
	if err := s.saveLocked(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.data = make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &s.data); err != nil || s.data == nil {
		// Keep the unreadable copy; the next Set rewrites the file.
		aside := s.path + ".corrupt"
		if werr := os.WriteFile(aside, data, 0o600); werr != nil {
			return fmt.Errorf("preserve unreadable store %s: %w", s.path, werr)
		}
		slog.Warn("store: failed to parse store file, starting empty", "path", s.path, "saved", aside, "err", err)
		s.data = make(map[string]json.RawMessage)
	}
	s.loaded = true
	return nil
}

func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write store %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore is an in-process Store. Values are kept JSON-encoded so Get
// always hands out independent copies.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}
