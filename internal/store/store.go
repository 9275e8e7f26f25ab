// Package store provides SQLite-based durable key-value persistence for chat
// records. Each operation is a single-record transaction; there is no
// multi-key atomicity.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"parley/internal/logger"
)

var (
	// ErrStorageUnavailable reports that the backing database failed to open
	// or initialize. Callers are expected to degrade rather than abort.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTxFailed reports that a single read or write transaction failed.
	ErrTxFailed = errors.New("transaction failed")

	// ErrNotFound reports a missing key.
	ErrNotFound = errors.New("record not found")
)

// Record is one persisted document keyed by ID. Data holds the serialized
// conversation; the store itself has no knowledge of its shape.
type Record struct {
	ID   string
	Data []byte
}

// Store is a durable keyed store backed by a single SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// chats table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chats (
		id   TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	logger.L.Info("chat store opened", "path", path)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the record stored under id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM chats WHERE id = ?;`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: get %s: %v", ErrTxFailed, id, err)
	}
	return Record{ID: id, Data: data}, nil
}

// Put inserts or replaces the record under its id.
func (s *Store) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data;`,
		rec.ID, rec.Data)
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrTxFailed, rec.ID, err)
	}
	return nil
}

// Delete removes the record under id. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?;`, id); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrTxFailed, id, err)
	}
	return nil
}

// ListAll returns every record in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM chats ORDER BY rowid ASC;`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrTxFailed, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrTxFailed, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrTxFailed, err)
	}
	return out, nil
}
