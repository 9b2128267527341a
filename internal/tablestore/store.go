// Package tablestore keeps user-defined tables in a SQLite database.
//
// Every logical table has a catalog entry in _catalog holding its display
// name, its sanitized storage identifier and its ordered column schema. The
// physical table is named by the identifier and carries an auto-incrementing
// row_id column plus one column per schema entry. All mutating operations
// run in a single transaction.
package tablestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

var errNotOpened = errors.New("database not opened")

// Store owns the catalog and all row storage.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug tracing of mutations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for catalog timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an unopened store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the database at path, creating parent directories as needed,
// and brings the catalog schema up to date. Use ":memory:" for a private
// in-memory database.
func (s *Store) Open(path string) error {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection serializes transactions and keeps :memory: databases
	// from splitting into one database per pooled connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened table store", "path", path)
	return nil
}

// FromDB wraps an already-open, already-migrated database.
func FromDB(db *sql.DB, opts ...Option) *Store {
	s := NewStore(opts...)
	s.db = db
	return s
}

// Path returns the database path passed to Open.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return storageError(op, "use store", errNotOpened)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(op, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageError(op, "commit transaction", err)
	}
	return nil
}
