// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

// Store is the byte-record backend underneath a StoreRepository.
//
// A Store must be safe for concurrent use and each call must be atomic per id:
// Put replaces the whole record so that a concurrent GetMany returns either the
// previous record or the new one, never a mix. Errors are returned as-is and are
// wrapped into *IOError by the repository.
type Store interface {
	// Put stores data under id, replacing any existing record.
	Put(ctx context.Context, id archive.ModuleID, data []byte) error

	// GetMany returns the records stored for ids. Missing ids are omitted.
	GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error)

	// Delete removes the record stored under id. Removing an absent id succeeds.
	Delete(ctx context.Context, id archive.ModuleID) error

	// Keys returns the ids of all stored records in no particular order.
	Keys(ctx context.Context) ([]archive.ModuleID, error)

	// Close releases resources held by the store.
	Close() error
}
