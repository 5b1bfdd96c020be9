// SPDX-License-Identifier: MPL-2.0

// Package sqlstore provides a repository.Store on top of database/sql.
//
// The statements use the upsert syntax shared by SQLite and PostgreSQL. The
// SQLite driver is registered by this package; callers of other databases
// import their driver themselves and use New.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const (
	// DefaultTable is the table used when no table name is given.
	DefaultTable = "script_archives"

	// MaxQueryIDs bounds the ids bound to one SELECT, keeping queries below
	// SQLite's host parameter limit.
	MaxQueryIDs = 500
)

var _ repository.Store = (*Store)(nil)

// Store keeps each record in one row keyed by module id.
type Store struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens (creating if needed) an SQLite database file and prepares
// the archive table.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlstore: database path must not be empty")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, DefaultTable)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New prepares table in db and returns a Store using it. The store owns db and
// closes it in Close.
func New(ctx context.Context, db *sql.DB, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	s := &Store{db: db, table: table}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (module_id TEXT PRIMARY KEY, record BLOB NOT NULL)`, s.table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return s, nil
}

// Put upserts the record for id inside a transaction.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO %s (module_id, record) VALUES (?, ?) ON CONFLICT (module_id) DO UPDATE SET record = excluded.record`, s.table)
	if _, err = tx.ExecContext(ctx, query, id.String(), data); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// GetMany selects the requested records, at most MaxQueryIDs ids per query.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	result := make(map[archive.ModuleID][]byte, len(ids))
	for chunk := range slices.Chunk(ids, MaxQueryIDs) {
		if err := s.getChunk(ctx, chunk, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) getChunk(ctx context.Context, ids []archive.ModuleID, result map[archive.ModuleID][]byte) (err error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf(`SELECT module_id, record FROM %s WHERE module_id IN (%s)`, s.table, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var (
			rawID  string
			record []byte
		)
		if err := rows.Scan(&rawID, &record); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		id, err := archive.ParseModuleID(rawID)
		if err != nil {
			return fmt.Errorf("corrupt module id column: %w", err)
		}
		result[id] = record
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	return nil
}

// Delete removes the row for id.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE module_id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Keys returns the module ids of all rows.
func (s *Store) Keys(ctx context.Context) (ids []archive.ModuleID, err error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT module_id FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, fmt.Errorf("failed to scan module id: %w", err)
		}
		id, err := archive.ParseModuleID(rawID)
		if err != nil {
			return nil, fmt.Errorf("corrupt module id column: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read module ids: %w", err)
	}
	return ids, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
