// SPDX-License-Identifier: MPL-2.0

// Package memstore provides an in-memory repository.Store.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps records in a map. Stored byte slices are never mutated, so a
// reader holding a record is unaffected by a concurrent replace.
type Store struct {
	mu      sync.RWMutex
	records map[archive.ModuleID][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[archive.ModuleID][]byte)}
}

// Put stores a copy of data under id.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record := slices.Clone(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = record
	return nil
}

// GetMany returns copies of the records stored for ids.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[archive.ModuleID][]byte, len(ids))
	for _, id := range ids {
		if data, ok := s.records[id]; ok {
			result[id] = slices.Clone(data)
		}
	}
	return result, nil
}

// Delete removes the record stored under id.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Keys returns the ids of all stored records.
func (s *Store) Keys(ctx context.Context) ([]archive.ModuleID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Keys(s.records)), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
