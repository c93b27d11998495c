// Package filestore implements storage.Store on the local filesystem.
// Writes are atomic: data is written to a temp file in the target directory
// and renamed into place, so a crash mid-write never leaves a torn value.
package filestore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/storage"
)

const (
	defaultDirPerm  = os.FileMode(0o755)
	defaultFilePerm = os.FileMode(0o644)
)

// Store is a file-backed storage.Store rooted at a single directory.
type Store struct {
	root string
}

// New creates a file store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "filestore", "New", "root dir cannot be empty")
	}
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.WrapTransient(err, "filestore", "New", "create root dir")
	}
	return &Store{root: dir}, nil
}

// keyPath maps a store key to a path under the root, rejecting traversal.
func (s *Store) keyPath(key string) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "filestore", "keyPath", "key cannot be empty")
	}
	if strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "filestore", "keyPath", "key must be a relative path without traversal")
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put stores data at key, overwriting any existing value. The write is
// atomic: temp file plus rename in the same directory.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "context check")
	}

	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "create parent dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "sync temp file")
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.WrapTransient(err, "filestore", "Put", "rename temp file")
	}

	return nil
}

// Get retrieves the data stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapTransient(err, "filestore", "Get", "context check")
	}

	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "filestore", "Get", key)
		}
		return nil, errors.WrapTransient(err, "filestore", "Get", "read file")
	}
	return data, nil
}

// List returns all keys under the root matching prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapTransient(err, "filestore", "List", "context check")
	}

	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// Skip temp files left by interrupted writes
		if strings.Contains(d.Name(), ".tmp.") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "filestore", "List", "walk root dir")
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes the data at key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "filestore", "Delete", "context check")
	}

	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapTransient(err, "filestore", "Delete", "remove file")
	}
	return nil
}

// Interface guard
var _ storage.Store = (*Store)(nil)
