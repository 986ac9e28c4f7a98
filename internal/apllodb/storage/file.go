// Package storage is the storage engine boundary: VTableRepository with
// its Version-table helpers and the navi resolver, backed concretely by
// modernc.org/sqlite, one *sql.DB per open database file with a single
// connection.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
)

// File is one open database file — the physical backing for exactly one
// apllodb Database.
type File struct {
	db          *sql.DB
	busyTimeout time.Duration
}

// dbExecutor is satisfied by both *sql.DB and *sql.Tx, letting every
// repository function run either directly against a file or inside an
// open transaction without duplicating the query layer.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures how a database file is opened.
type Options struct {
	// BusyTimeout bounds how long a write waits for the file's single
	// writer lock before the caller observes DeadlockDetected.
	BusyTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{BusyTimeout: 1 * time.Second}
}

// Open opens (creating if absent) the SQLite file backing a database
// named dbName under dataDir: "one file per database,
// named <db_name>.<ext> in the configured data directory."
func Open(ctx context.Context, dataDir, dbName string, opts Options) (*File, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, apperrors.Wrap(apperrors.IoError, err, "create data directory")
	}
	path := filepath.Join(dataDir, dbName+".apllodb")
	return OpenPath(ctx, path, opts)
}

// OpenPath opens a database file at an explicit path, primarily for tests.
func OpenPath(ctx context.Context, path string, opts Options) (*File, error) {
	if opts.BusyTimeout <= 0 {
		opts = DefaultOptions()
	}
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, opts.BusyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.IoError, err, "open sqlite file")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.IoError, err, "ping sqlite file")
	}
	f := &File{db: db, busyTimeout: opts.BusyTimeout}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	return f.db.Close()
}

func (f *File) DB() *sql.DB { return f.db }

// Exists reports whether a database file already exists at path, used by
// USE DATABASE / CREATE DATABASE to enforce the
// UndefinedObject / DuplicateDatabase semantics.
func Exists(dataDir, dbName string) bool {
	path := filepath.Join(dataDir, dbName+".apllodb")
	_, err := os.Stat(path)
	return err == nil
}

func Path(dataDir, dbName string) string {
	return filepath.Join(dataDir, dbName+".apllodb")
}

var errBusy = errors.New("storage: database file busy")
