package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the state document in a local JSON file.
type FileStore struct {
	documentStore
	path string
}

// NewFileStore returns a store backed by path. The file is created on first Set.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: filepath.Clean(path)}
	s.documentStore = documentStore{name: "file", backend: fileBackend{path: s.path}}
	return s
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

type fileBackend struct {
	path string
}

func (b fileBackend) read(context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// write replaces the file atomically through a sibling temp file.
func (b fileBackend) write(_ context.Context, doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".state-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, b.path)
}

func (b fileBackend) remove(context.Context) error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (fileBackend) close() error { return nil }
