package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

type localStore struct {
	dir string
}

func NewLocal(dir string) Store {
	return &localStore{dir: dir}
}

func (s *localStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes via a temp file and rename, so a crash mid-write never leaves
// a truncated document behind.
func (s *localStore) Save(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(name))
}

func (s *localStore) Load(name string, dst any) (bool, error) {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return true, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return true, err
	}
	return true, nil
}

func (s *localStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *localStore) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
