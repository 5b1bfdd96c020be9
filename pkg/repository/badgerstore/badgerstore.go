// SPDX-License-Identifier: MPL-2.0

// Package badgerstore provides a repository.Store backed by BadgerDB.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const keyPrefix = "archive/"

var _ repository.Store = (*Store)(nil)

type (
	// Store keeps each record under "archive/<module id>". Writes run in their
	// own transaction and reads see a consistent snapshot.
	Store struct {
		db *badger.DB
	}

	// Options configures a BadgerDB store.
	Options struct {
		// Dir holds the data files. Required unless InMemory is set.
		Dir string

		// InMemory keeps all data in memory; nothing is persisted.
		InMemory bool

		// Logger receives BadgerDB's own log output. Info and debug messages are
		// logged at debug level. If nil, BadgerDB output is discarded.
		Logger *log.Logger
	}

	// badgerLogger adapts a charmbracelet logger to badger.Logger.
	badgerLogger struct {
		logger *log.Logger
	}

	discardLogger struct{}
)

// Open opens or creates a BadgerDB database.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badgerstore: Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(badgerLogger{logger: opts.Logger.WithPrefix("badger")})
	} else {
		dbOpts = dbOpts.WithLogger(discardLogger{})
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Put replaces the record for id in a single transaction.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(id), data)
	})
}

// GetMany reads all requested records from one read transaction.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[archive.ModuleID][]byte, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(recordKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[id] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Keys lists the ids of all records with a key-only iteration.
func (s *Store) Keys(ctx context.Context) ([]archive.ModuleID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []archive.ModuleID
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			id, err := archive.ParseModuleID(strings.TrimPrefix(key, keyPrefix))
			if err != nil {
				return fmt.Errorf("unexpected key %q: %w", key, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(id archive.ModuleID) []byte {
	return []byte(keyPrefix + id.String())
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.logger.Errorf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.logger.Warnf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Infof(f string, v ...any)    { l.logger.Debugf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Debugf(f string, v ...any)   { l.logger.Debugf(strings.TrimSpace(f), v...) }

func (discardLogger) Errorf(string, ...any)   {}
func (discardLogger) Warningf(string, ...any) {}
func (discardLogger) Infof(string, ...any)    {}
func (discardLogger) Debugf(string, ...any)   {}
