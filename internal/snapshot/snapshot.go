// Package snapshot keeps the store list from the last successful run so the
// next run can diff geofences against it.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesync/internal/catalog"
	"github.com/sells-group/storesync/internal/model"
)

// Store loads and saves the previous store list. Load returns an empty list
// when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]model.Store, error)
	Save(ctx context.Context, stores []model.Store) error
}

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	path string
}

// NewFile returns a FileStore at path.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot file.
func (f *FileStore) Load(_ context.Context) ([]model.Store, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", f.path)
	}
	stores, err := catalog.Parse(data, catalog.FormatJSON)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: parse %s", f.path)
	}
	return stores, nil
}

// Save replaces the snapshot file atomically.
func (f *FileStore) Save(_ context.Context, stores []model.Store) error {
	var buf bytes.Buffer
	if err := catalog.WriteJSON(&buf, stores); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "snapshot: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return eris.Wrapf(err, "snapshot: replace %s", f.path)
	}
	return nil
}
