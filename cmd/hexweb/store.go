// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/enikki/hex-web/lib/registry"
	"github.com/enikki/hex-web/lib/sqlitepool"
)

// Catalog is the SQLite-backed record store the collector reads and
// the seed command writes. It implements registry.Store for direct
// queries and registry.Snapshotter so a build's collection runs
// inside one read transaction: under WAL, that transaction sees the
// database as of its start no matter what a concurrent seed commits.
//
// Write path: Import upserts a full dataset in a single IMMEDIATE
// transaction. There is no incremental write API; the catalog is fed
// by the publishing pipeline upstream, and locally by seed files.
type Catalog struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// CatalogConfig holds the parameters for opening the catalog.
type CatalogConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4 if
	// zero or negative.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// catalogSchema holds the package, release, requirement, and install
// tables. Requirements carry an explicit position so the declaration
// order of a release's dependencies survives storage: the wire
// formats preserve that order, so the catalog must too.
const catalogSchema = `
	CREATE TABLE IF NOT EXISTS packages (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS releases (
		id          INTEGER PRIMARY KEY,
		package_id  INTEGER NOT NULL REFERENCES packages(id),
		version     TEXT NOT NULL,
		checksum    BLOB NOT NULL,
		app         TEXT NOT NULL DEFAULT '',
		build_tool  TEXT NOT NULL DEFAULT '',
		build_tools TEXT,
		UNIQUE (package_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_releases_package ON releases(package_id);

	CREATE TABLE IF NOT EXISTS requirements (
		release_id  INTEGER NOT NULL REFERENCES releases(id),
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		app         TEXT NOT NULL DEFAULT '',
		requirement TEXT NOT NULL,
		optional    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (release_id, position)
	);

	CREATE TABLE IF NOT EXISTS installs (
		client_version   TEXT PRIMARY KEY,
		runtime_versions TEXT NOT NULL
	);
`

// OpenCatalog opens the catalog database, creating the file and
// schema if needed. The caller must Close it when done.
func OpenCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("catalog: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, catalogSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	return &Catalog{pool: pool, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (c *Catalog) Close() error {
	return c.pool.Close()
}

// PackageNames lists every package name, sorted.
func (c *Catalog) PackageNames(ctx context.Context) ([]string, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: package names: %w", err)
	}
	defer c.pool.Put(conn)
	return queryPackageNames(conn)
}

// PackageReleases lists the releases of one package with their
// requirements in declaration order. Unknown names return an empty
// list, not an error.
func (c *Catalog) PackageReleases(ctx context.Context, name string) ([]registry.Release, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: releases of %q: %w", name, err)
	}
	defer c.pool.Put(conn)
	return queryPackageReleases(conn, name)
}

// Installs lists every install-compatibility record, sorted by client
// version string.
func (c *Catalog) Installs(ctx context.Context) ([]registry.Install, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: installs: %w", err)
	}
	defer c.pool.Put(conn)
	return queryInstalls(conn)
}

// Snapshot pins one pooled connection, opens a read transaction, and
// runs collect against a view bound to it. Every query the collector
// issues sees the same committed state.
func (c *Catalog) Snapshot(ctx context.Context, collect func(registry.Store) error) (err error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: snapshot: %w", err)
	}
	defer c.pool.Put(conn)

	endRead := sqlitex.Transaction(conn)
	defer endRead(&err)

	return collect(connView{conn: conn})
}

// connView serves collector queries from a single connection, letting
// Snapshot's read transaction cover all of them.
type connView struct {
	conn *sqlite.Conn
}

func (v connView) PackageNames(ctx context.Context) ([]string, error) {
	return queryPackageNames(v.conn)
}

func (v connView) PackageReleases(ctx context.Context, name string) ([]registry.Release, error) {
	return queryPackageReleases(v.conn, name)
}

func (v connView) Installs(ctx context.Context) ([]registry.Install, error) {
	return queryInstalls(v.conn)
}

func queryPackageNames(conn *sqlite.Conn) ([]string, error) {
	var names []string
	err := sqlitex.Execute(conn, "SELECT name FROM packages ORDER BY name", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			names = append(names, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: package names: %w", err)
	}
	return names, nil
}

func queryPackageReleases(conn *sqlite.Conn, name string) ([]registry.Release, error) {
	type releaseRow struct {
		id      int64
		release registry.Release
	}
	var rows []releaseRow

	err := sqlitex.Execute(conn, `SELECT r.id, r.version, r.checksum, r.app, r.build_tool, r.build_tools
		FROM releases r JOIN packages p ON p.id = r.package_id
		WHERE p.name = ? ORDER BY r.id`, &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := releaseRow{id: stmt.ColumnInt64(0)}
			row.release.Version = stmt.ColumnText(1)

			checksum := make([]byte, stmt.ColumnLen(2))
			stmt.ColumnBytes(2, checksum)
			row.release.Checksum = checksum

			row.release.App = stmt.ColumnText(3)
			row.release.BuildTool = stmt.ColumnText(4)

			if !stmt.ColumnIsNull(5) {
				if err := json.Unmarshal([]byte(stmt.ColumnText(5)), &row.release.BuildTools); err != nil {
					return fmt.Errorf("unmarshal build tools of %s %s: %w", name, row.release.Version, err)
				}
			}

			rows = append(rows, row)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: releases of %q: %w", name, err)
	}

	releases := make([]registry.Release, 0, len(rows))
	for _, row := range rows {
		requirements, err := queryRequirements(conn, row.id)
		if err != nil {
			return nil, fmt.Errorf("catalog: requirements of %s %s: %w", name, row.release.Version, err)
		}
		row.release.Requirements = requirements
		releases = append(releases, row.release)
	}
	return releases, nil
}

func queryRequirements(conn *sqlite.Conn, releaseID int64) ([]registry.Requirement, error) {
	var requirements []registry.Requirement
	err := sqlitex.Execute(conn, `SELECT name, app, requirement, optional
		FROM requirements WHERE release_id = ? ORDER BY position`, &sqlitex.ExecOptions{
		Args: []any{releaseID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			requirements = append(requirements, registry.Requirement{
				Name:        stmt.ColumnText(0),
				App:         stmt.ColumnText(1),
				Requirement: stmt.ColumnText(2),
				Optional:    stmt.ColumnInt(3) != 0,
			})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return requirements, nil
}

func queryInstalls(conn *sqlite.Conn) ([]registry.Install, error) {
	var installs []registry.Install
	err := sqlitex.Execute(conn, `SELECT client_version, runtime_versions
		FROM installs ORDER BY client_version`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			install := registry.Install{ClientVersion: stmt.ColumnText(0)}
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &install.RuntimeVersions); err != nil {
				return fmt.Errorf("unmarshal runtime versions of %s: %w", install.ClientVersion, err)
			}
			installs = append(installs, install)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: installs: %w", err)
	}
	return installs, nil
}

// Import writes a full dataset in one IMMEDIATE transaction. Existing
// packages and releases with matching identities are updated in
// place; a replaced release's requirement list is replaced wholesale,
// never merged.
func (c *Catalog) Import(ctx context.Context, snapshot *registry.Snapshot) (err error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: import: %w", err)
	}
	defer c.pool.Put(conn)

	endWrite, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("catalog: begin import transaction: %w", err)
	}
	defer endWrite(&err)

	for _, pkg := range snapshot.Packages {
		if err := importPackage(conn, pkg); err != nil {
			return fmt.Errorf("catalog: import %s: %w", pkg.Name, err)
		}
	}
	for _, install := range snapshot.Installs {
		if err := importInstall(conn, install); err != nil {
			return fmt.Errorf("catalog: import install %s: %w", install.ClientVersion, err)
		}
	}
	return nil
}

// Reset deletes every record. Child tables go first so the foreign
// keys never trip.
func (c *Catalog) Reset(ctx context.Context) (err error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: reset: %w", err)
	}
	defer c.pool.Put(conn)

	endWrite, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("catalog: begin reset transaction: %w", err)
	}
	defer endWrite(&err)

	for _, table := range []string{"requirements", "releases", "packages", "installs"} {
		if err := sqlitex.ExecuteTransient(conn, "DELETE FROM "+table, nil); err != nil {
			return fmt.Errorf("catalog: reset %s: %w", table, err)
		}
	}
	return nil
}

func importPackage(conn *sqlite.Conn, pkg registry.Package) error {
	packageID, err := upsertPackageRow(conn, pkg.Name)
	if err != nil {
		return err
	}
	for _, release := range pkg.Releases {
		if err := importRelease(conn, packageID, release); err != nil {
			return fmt.Errorf("release %s: %w", release.Version, err)
		}
	}
	return nil
}

func upsertPackageRow(conn *sqlite.Conn, name string) (int64, error) {
	err := sqlitex.Execute(conn, "INSERT INTO packages (name) VALUES (?) ON CONFLICT(name) DO NOTHING", &sqlitex.ExecOptions{
		Args: []any{name},
	})
	if err != nil {
		return 0, err
	}

	var id int64
	err = sqlitex.Execute(conn, "SELECT id FROM packages WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func importRelease(conn *sqlite.Conn, packageID int64, release registry.Release) error {
	buildToolsJSON, err := jsonArrayOrNull(release.BuildTools)
	if err != nil {
		return fmt.Errorf("marshal build tools: %w", err)
	}

	var releaseID int64
	var exists bool
	err = sqlitex.Execute(conn, "SELECT id FROM releases WHERE package_id = ? AND version = ?", &sqlitex.ExecOptions{
		Args: []any{packageID, release.Version},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			releaseID = stmt.ColumnInt64(0)
			exists = true
			return nil
		},
	})
	if err != nil {
		return err
	}

	if exists {
		err = sqlitex.Execute(conn, "DELETE FROM requirements WHERE release_id = ?", &sqlitex.ExecOptions{
			Args: []any{releaseID},
		})
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, `UPDATE releases SET checksum = ?, app = ?, build_tool = ?, build_tools = ?
			WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{release.Checksum, release.App, release.BuildTool, buildToolsJSON, releaseID},
		})
		if err != nil {
			return err
		}
	} else {
		err = sqlitex.Execute(conn, `INSERT INTO releases (package_id, version, checksum, app, build_tool, build_tools)
			VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{packageID, release.Version, release.Checksum, release.App, release.BuildTool, buildToolsJSON},
		})
		if err != nil {
			return err
		}
		releaseID = conn.LastInsertRowID()
	}

	for position, requirement := range release.Requirements {
		err = sqlitex.Execute(conn, `INSERT INTO requirements (release_id, position, name, app, requirement, optional)
			VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{releaseID, position, requirement.Name, requirement.App, requirement.Requirement, boolToInt(requirement.Optional)},
		})
		if err != nil {
			return fmt.Errorf("requirement %s: %w", requirement.Name, err)
		}
	}
	return nil
}

func importInstall(conn *sqlite.Conn, install registry.Install) error {
	versionsJSON, err := jsonArray(install.RuntimeVersions)
	if err != nil {
		return fmt.Errorf("marshal runtime versions: %w", err)
	}
	return sqlitex.Execute(conn, `INSERT INTO installs (client_version, runtime_versions) VALUES (?, ?)
		ON CONFLICT(client_version) DO UPDATE SET runtime_versions = excluded.runtime_versions`, &sqlitex.ExecOptions{
		Args: []any{install.ClientVersion, versionsJSON},
	})
}

// jsonArray marshals values, encoding nil as the empty array so NOT
// NULL columns never see the JSON null.
func jsonArray(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonArrayOrNull marshals values, mapping empty to SQL NULL for
// nullable columns.
func jsonArrayOrNull(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
