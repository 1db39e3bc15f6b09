// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a SQLite connection pool.
// Path is required; everything else has defaults.
type Config struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist; the file is created if it does not. Use
	// ":memory:" with PoolSize 1 for tests (each in-memory connection
	// is an independent database).
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative. SQLite serializes writes regardless of
	// pool size; extra connections only help concurrent readers.
	PoolSize int

	// Logger receives open and close messages. If nil, the pool is
	// silent.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas
	// are applied. Use it for schema creation or extra pragmas. An
	// error discards the connection and surfaces from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections with the catalog's
// standard pragmas applied. It wraps sqlitex.Pool and exposes the
// same Take/Put API.
//
// Pool is safe for concurrent use. Individual connections are not;
// each goroutine must Take its own connection and Put it back.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates a connection pool over the database at cfg.Path,
// creating the file if needed. Connections are initialized lazily on
// first Take. The caller must Close the pool when done.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"pool_size", poolSize,
	)

	return &Pool{
		inner:  inner,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Take borrows a connection from the pool, blocking until one is
// available or ctx is cancelled. The caller MUST Put it back,
// typically via defer.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil. After
// Put, the caller must not use the connection.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes all connections. Blocks until borrowed connections are
// returned. After Close, Take returns an error.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// prepareConnection applies the catalog's standard pragmas, then the
// optional OnConnect callback. Runs once per pooled connection, on
// first use.
func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	// WAL keeps collector read transactions from blocking writers.
	// NORMAL synchronous survives process crashes; the catalog is
	// re-seedable, so that durability level is enough. Foreign keys
	// are enforced because the catalog schema relies on REFERENCES
	// between packages, releases, and requirements.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}

	return nil
}
