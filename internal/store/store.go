// Package store persists named collections as JSON documents on disk and
// hands out the exclusive sections that make multi-collection operations
// atomic with respect to each other.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Collection names used across the API.
const (
	Products = "products"
	Carts    = "carts"
	Orders   = "orders"
	Users    = "users"
)

// FileStore keeps one JSON array file per collection under a data directory.
// Load and Save move whole collections; callers that read-then-write must
// hold the matching exclusive section for the full sequence.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load reads every document in the collection. A collection that has never
// been written loads as empty, not as an error.
func Load[T any](s *FileStore, collection string) ([]T, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection %q: %w", collection, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var docs []T
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", collection, err)
	}
	return docs, nil
}

// Save replaces the entire collection. The new contents are written to a
// temporary file in the same directory and renamed over the target, so a
// failure mid-write leaves the previous state readable.
func Save[T any](s *FileStore, collection string, docs []T) error {
	if docs == nil {
		docs = []T{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", collection, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection %q: %w", collection, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync collection %q: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close collection %q: %w", collection, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod collection %q: %w", collection, err)
	}
	if err := os.Rename(tmp.Name(), s.path(collection)); err != nil {
		return fmt.Errorf("replace collection %q: %w", collection, err)
	}
	return nil
}
