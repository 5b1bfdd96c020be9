// SPDX-License-Identifier: MPL-2.0

// Package fsstore provides a repository.Store that keeps one file per archive
// in a directory.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const (
	recordExt  = ".rec"
	tempPrefix = ".tmp-"
)

var _ repository.Store = (*Store)(nil)

// Store writes each record to <dir>/<escaped id>.rec. Records are replaced by
// renaming a fully written temp file over the old one.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("fsstore: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

// Put atomically replaces the file for id with data.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName) // Best-effort cleanup of the partial write.
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record: %w", err)
	}
	if err = os.Rename(tmpName, s.path(id)); err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}

// GetMany reads the files for ids, skipping ids without a file.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	result := make(map[archive.ModuleID][]byte, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(s.path(id))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		result[id] = data
	}
	return result, nil
}

// Delete removes the file for id.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove record: %w", err)
	}
	return nil
}

// Keys lists the ids of all record files. Files that do not decode to a module
// id are ignored.
func (s *Store) Keys(ctx context.Context) ([]archive.ModuleID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list repository directory: %w", err)
	}

	ids := make([]archive.ModuleID, 0, len(dirEntries))
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		if id, ok := decodeFileName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) path(id archive.ModuleID) string {
	return filepath.Join(s.dir, url.PathEscape(id.String())+recordExt)
}

func decodeFileName(name string) (archive.ModuleID, bool) {
	raw, err := url.PathUnescape(strings.TrimSuffix(name, recordExt))
	if err != nil {
		return archive.ModuleID{}, false
	}
	id, err := archive.ParseModuleID(raw)
	if err != nil {
		return archive.ModuleID{}, false
	}
	return id, true
}
