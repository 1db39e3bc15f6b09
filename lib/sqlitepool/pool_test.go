// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/enikki/hex-web/lib/sqlitepool"
)

func TestOpenAndClose(t *testing.T) {
	pool := openTestPool(t, nil)

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var journalMode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			journalMode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}

	var foreignKeys int
	err = sqlitex.Execute(conn, "PRAGMA foreign_keys", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			foreignKeys = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func TestOnConnect(t *testing.T) {
	var called bool
	pool := openTestPool(t, func(conn *sqlite.Conn) error {
		called = true
		return sqlitex.ExecuteScript(conn, `
			CREATE TABLE IF NOT EXISTS packages (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			);
		`, nil)
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if !called {
		t.Error("OnConnect was not called")
	}

	err = sqlitex.Execute(conn, "INSERT INTO packages (name) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{"decimal"},
	})
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	pool := openTestPool(t, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			CREATE TABLE IF NOT EXISTS packages (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			);
			CREATE TABLE IF NOT EXISTS releases (
				id         INTEGER PRIMARY KEY,
				package_id INTEGER NOT NULL REFERENCES packages(id),
				version    TEXT NOT NULL
			);
		`, nil)
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	// A release pointing at a package id that does not exist must be
	// rejected, not silently stored.
	err = sqlitex.Execute(conn, "INSERT INTO releases (package_id, version) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{999, "1.0.0"},
	})
	if err == nil {
		t.Fatal("INSERT with dangling package_id succeeded, want foreign key error")
	}
}

func TestConcurrentReads(t *testing.T) {
	pool := openTestPool(t, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			CREATE TABLE IF NOT EXISTS packages (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			);
		`, nil)
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take for setup: %v", err)
	}
	err = sqlitex.ExecuteScript(conn, `
		INSERT INTO packages (name) VALUES
			('decimal'), ('ex_doc'), ('jason'), ('phoenix'), ('plug');
	`, nil)
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	pool.Put(conn)

	// Collection fans reads out over pooled connections; every reader
	// must see the full package set.
	const readers = 8
	var waitGroup sync.WaitGroup
	errors := make(chan error, readers)

	for range readers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()

			conn, err := pool.Take(context.Background())
			if err != nil {
				errors <- err
				return
			}
			defer pool.Put(conn)

			var names []string
			err = sqlitex.Execute(conn, "SELECT name FROM packages ORDER BY name", &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					names = append(names, stmt.ColumnText(0))
					return nil
				},
			})
			if err != nil {
				errors <- err
				return
			}
			want := []string{"decimal", "ex_doc", "jason", "phoenix", "plug"}
			if !slices.Equal(names, want) {
				errors <- fmt.Errorf("names = %v, want %v", names, want)
			}
		}()
	}

	waitGroup.Wait()
	close(errors)

	for err := range errors {
		t.Error(err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	_, err := sqlitepool.Open(sqlitepool.Config{})
	if err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestContextCancellation(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	// The pool has size 1 and its only connection is borrowed, so a
	// second Take can only end via the cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.Take(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	pool.Put(conn)
}

// openTestPool creates a pool backed by a temporary database file.
// The pool is closed automatically when the test completes.
func openTestPool(t *testing.T, onConnect func(*sqlite.Conn) error) *sqlitepool.Pool {
	t.Helper()

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		PoolSize:  4,
		OnConnect: onConnect,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
