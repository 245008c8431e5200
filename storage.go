package sessiongate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// MemoryStorage is a Storage backed by a map. Useful for tests and for
// embedders that manage persistence themselves.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrStorageKeyNotFound.WithMetadata(map[string]any{"key": key})
	}
	return v, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStorage persists keys as a single JSON document on disk, the way
// client tooling keeps credentials under the user config dir. Writes go to
// a temp file first so a crash mid-write cannot corrupt the session file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// DefaultStoragePath returns the session file location under the user
// config directory.
func DefaultStoragePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to resolve user config dir")
	}
	return filepath.Join(dir, "barberly", "session.json"), nil
}

func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		var err error
		if path, err = DefaultStoragePath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create storage dir").
			WithMetadata(map[string]any{"path": path})
	}

	return &FileStorage{path: path}, nil
}

func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}

	v, ok := values[key]
	if !ok {
		return "", ErrStorageKeyNotFound.WithMetadata(map[string]any{"key": key})
	}
	return v, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	values[key] = value
	return s.save(values)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := values[key]; !ok {
		return nil
	}

	delete(values, key)
	return s.save(values)
}

func (s *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read session file").
			WithMetadata(map[string]any{"path": s.path})
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to decode session file").
			WithMetadata(map[string]any{"path": s.path})
	}
	return values, nil
}

func (s *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode session file")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write session file").
			WithMetadata(map[string]any{"path": s.path})
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to replace session file").
			WithMetadata(map[string]any{"path": s.path})
	}
	return nil
}

// ReadToken reads the stored bearer token, treating a missing key as empty.
func ReadToken(s Storage) string {
	if s == nil {
		return ""
	}
	v, err := s.Get(StorageKeyToken)
	if err != nil {
		return ""
	}
	return v
}

// ReadAuthenticated reads the persisted authenticated flag, treating a
// missing key or any value other than "true" as false.
func ReadAuthenticated(s Storage) bool {
	if s == nil {
		return false
	}
	v, err := s.Get(StorageKeyAuthenticated)
	if err != nil {
		return false
	}
	return v == "true"
}
