package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Driver names accepted in Options.Driver.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo = "sqlite"
)

// DefaultBusyTimeout is how long SQLite waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// DefaultLockTimeout is how long Open waits for the store lock.
// A replaced manager may still be draining when its successor attaches.
const DefaultLockTimeout = 5 * time.Second

// Options control how a store is attached.
type Options struct {
	// Driver selects the database/sql driver. Empty means DriverCGO.
	Driver string

	// AutoMigrate permits structural migration steps on older stores.
	AutoMigrate bool

	// InferMapping permits lightweight (inferred) migration steps,
	// such as adding an index, on older stores.
	InferMapping bool

	// BusyTimeout overrides DefaultBusyTimeout when non-zero.
	BusyTimeout time.Duration

	// LockTimeout overrides DefaultLockTimeout when non-zero.
	// A negative value makes a single lock attempt.
	LockTimeout time.Duration
}

func (o Options) driver() string {
	if o.Driver == "" {
		return DriverCGO
	}
	return o.Driver
}

func (o Options) busyTimeout() time.Duration {
	if o.BusyTimeout <= 0 {
		return DefaultBusyTimeout
	}
	return o.BusyTimeout
}

func (o Options) lockTimeout() time.Duration {
	switch {
	case o.LockTimeout < 0:
		return 0
	case o.LockTimeout == 0:
		return DefaultLockTimeout
	default:
		return o.LockTimeout
	}
}

// Store is an attached, file-backed object store.
// It owns one SQLite connection and the exclusive store lock.
type Store struct {
	db     *sql.DB
	path   string
	lock   *fileLock
	logger *slog.Logger
}

// Open attaches the store at path, creating it (and parent directories)
// when absent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention
//   - foreign key enforcement
//
// Every failure is reported as an *Error; lock contention as CodeLocked,
// disallowed migrations as CodeMigration, everything else as CodeAttach.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, newError("open", CodeAttach, path, errors.New("path is empty"))
	}
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError("open", CodeAttach, path, fmt.Errorf("create store directory: %w", err))
	}

	lock, err := acquireLock(path, opts.lockTimeout())
	if err != nil {
		code := CodeAttach
		if errors.Is(err, errLockBusy) {
			code = CodeLocked
		}
		return nil, newError("open", code, path, err)
	}

	db, err := sql.Open(opts.driver(), path)
	if err != nil {
		lock.release()
		return nil, newError("open", CodeAttach, path, fmt.Errorf("open database: %w", err))
	}

	// SQLite allows one writer; a single connection also keeps the pragmas
	// below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		lock.release()
		return nil, newError("open", CodeAttach, path, fmt.Errorf("connect to database: %w", err))
	}

	if err := applyPragmas(ctx, db, opts); err != nil {
		db.Close()
		lock.release()
		return nil, newError("open", CodeAttach, path, err)
	}

	if err := applySchema(ctx, db, opts); err != nil {
		db.Close()
		lock.release()
		code := CodeAttach
		if errors.Is(err, errMigrationNotPermitted) || errors.Is(err, errSchemaTooNew) {
			code = CodeMigration
		}
		return nil, newError("open", code, path, err)
	}

	logger.Debug("store attached", "path", path, "driver", opts.driver())
	return &Store{db: db, path: path, lock: lock, logger: logger}, nil
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the store lock.
// Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.lock.release()
	if err != nil {
		return newError("close", CodeIO, s.path, err)
	}
	return nil
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(ctx context.Context, db *sql.DB, opts Options) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.busyTimeout().Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
