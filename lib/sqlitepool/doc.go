// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool backing the
// registry catalog.
//
// It wraps zombiezen.com/go/sqlite with the pragmas the catalog
// workload wants: WAL journal mode so the collector's read
// transactions never block seeding writes, NORMAL synchronous (the
// catalog can always be re-seeded from publisher input), a busy
// timeout instead of immediate SQLITE_BUSY, and enforced foreign keys
// because the catalog schema leans on REFERENCES for integrity.
//
// The pool is built on sqlitex.Pool, which manages a fixed-size set
// of connections. Callers [Pool.Take] a connection, perform work, and
// [Pool.Put] it back. Connections are not safe for concurrent use;
// each goroutine holds its own for the duration of its work.
//
// The package is intentionally thin. Callers write SQL, use
// sqlitex.Execute for cached statements, and manage transactions with
// the sqlitex transaction helpers. There is no query builder and no
// attempt to hide SQLite's connection model.
package sqlitepool
