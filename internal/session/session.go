// Package session keeps the small amount of local state the client remembers
// between runs: the display name and the last room joined.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// KeyName holds the display name.
	KeyName = "roomchat_name"
	// KeyRoomCode holds the last room code.
	KeyRoomCode = "roomchat_roomCode"

	appName     = "roomchat"
	sessionFile = "session.yaml"
)

// Storage is a string key-value store. Missing keys read as "".
type Storage interface {
	Get(key string) string
	Set(key, value string) error
	Remove(key string) error
}

// FileStore persists values as a YAML map in a single file.
type FileStore struct {
	path string

	mu    sync.RWMutex
	cache map[string]string
}

// NewFileStore opens the session file at path, or at DefaultPath when path is empty.
// A missing or unreadable file starts an empty session.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	fs := &FileStore{path: path, cache: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}

	// Corrupt session files are discarded like stale browser storage.
	_ = yaml.Unmarshal(data, &fs.cache)
	if fs.cache == nil {
		fs.cache = make(map[string]string)
	}
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get implements Storage.
func (f *FileStore) Get(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cache[key]
}

// Set implements Storage.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.cache[key]
	f.cache[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.cache[key] = prev
		} else {
			delete(f.cache, key)
		}
		return err
	}
	return nil
}

// Remove implements Storage.
func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.cache[key]
	if !had {
		return nil
	}
	delete(f.cache, key)
	if err := f.flush(); err != nil {
		f.cache[key] = prev
		return err
	}
	return nil
}

// flush writes the cache to disk. Caller holds mu.
func (f *FileStore) flush() error {
	data, err := yaml.Marshal(f.cache)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/roomchat/session.yaml, falling back to
// the OS user config directory and then the working directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, sessionFile)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName, sessionFile)
	}
	return filepath.Join(".", sessionFile)
}

// MemoryStore is an in-memory Storage.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStore) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Set implements Storage.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements Storage.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
