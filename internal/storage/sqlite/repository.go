// Package sqlite is the SQLite-backed ledger store.
//
// Writes go through a single-connection pool whose transactions take the
// database write lock at BEGIN, so concurrent units of work are serialized
// and a unit that cannot get the lock within the busy timeout fails with a
// ConcurrencyError. Reads use a separate pool and see committed rows only.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wealthwatch/internal/storage"
)

const (
	DefaultBusyTimeout = 5 * time.Second
	defaultReadConns   = 4
)

// Options tunes the connection pools.
type Options struct {
	BusyTimeout time.Duration
	ReadConns   int
}

type Repository struct {
	writer *sql.DB
	reader *sql.DB
	lock   *storage.WriteLock
}

var _ storage.Store = (*Repository)(nil)

// DSN builds the connection string used for dbPath.
func DSN(dbPath string, busyTimeout time.Duration, immediate bool) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(wal)")
	if immediate {
		q.Set("_txlock", "immediate")
	}
	u := url.URL{Scheme: "file", Opaque: uriPathEscaper.Replace(dbPath), RawQuery: q.Encode()}
	return u.String()
}

// uriPathEscaper escapes the characters SQLite treats specially in the path
// part of a file: URI.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

func New(dbPath string, opts Options) (*Repository, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	if opts.ReadConns <= 0 {
		opts.ReadConns = defaultReadConns
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	writeDSN := DSN(dbPath, opts.BusyTimeout, true)
	if err := RunMigrations(writeDSN); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	writer, err := sql.Open("sqlite", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", DSN(dbPath, opts.BusyTimeout, false))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}
	reader.SetMaxOpenConns(opts.ReadConns)

	if err := writer.Ping(); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{writer: writer, reader: reader, lock: storage.NewWriteLock(opts.BusyTimeout)}, nil
}

func (r *Repository) Close() error {
	rerr := r.reader.Close()
	if err := r.writer.Close(); err != nil {
		return err
	}
	return rerr
}

// Update runs fn inside a BEGIN IMMEDIATE transaction on the writer pool.
// In-process writers queue on the write lock; other processes holding the
// database lock past the busy timeout surface as SQLITE_BUSY.
func (r *Repository) Update(ctx context.Context, fn func(ctx context.Context, w storage.Writer) error) error {
	release, err := r.lock.Acquire(ctx, "begin")
	if err != nil {
		return err
	}
	defer release()

	tx, err := r.writer.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit", err)
	}
	return nil
}

// View runs fn inside a read transaction so every query sees one snapshot.
func (r *Repository) View(ctx context.Context, fn func(ctx context.Context, r storage.Reader) error) error {
	tx, err := r.reader.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin read", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(ctx, &queries{db: tx})
}
