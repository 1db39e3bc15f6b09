// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
)

// Package is one named unit distributed through the registry,
// together with every release published under that name.
type Package struct {
	// Name is the unique package name.
	Name string

	// Releases holds the package's published releases in store
	// order. Encoders sort copies; the slice itself is never
	// reordered after collection.
	Releases []Release
}

// Release is one published version of a package.
type Release struct {
	// Version is the release's semantic-version string, stored
	// verbatim. The builder orders versions by semantic-version
	// precedence but never validates or rewrites them.
	Version string

	// Checksum is the digest of the published package tarball,
	// computed at upload time. The builder carries it through to
	// the wire formats unchanged.
	Checksum []byte

	// App is the release's application name. Usually equal to the
	// package name; differs for packages whose runtime application
	// is registered under another name.
	App string

	// Requirements lists the release's dependencies in declaration
	// order. The order is preserved on the wire, not re-sorted.
	Requirements []Requirement

	// BuildTool is the legacy single-tool indicator. Empty when the
	// release did not record one.
	BuildTool string

	// BuildTools names the build systems that can consume the
	// release. Empty when unknown; readers treat absence as empty.
	BuildTools []string
}

// Requirement is one dependency edge from a release to a named
// package.
type Requirement struct {
	// Name is the depended-on package name.
	Name string

	// App is the depended-on application name.
	App string

	// Requirement is the version constraint expression, opaque to
	// the builder.
	Requirement string

	// Optional marks dependencies that clients only enforce when
	// some other package also requires them.
	Optional bool
}

// Install maps one client tool version to the runtime versions it
// supports. Clients consult the aggregated install list to pick a
// compatible tool version before resolving anything else.
type Install struct {
	// ClientVersion is the client tool release.
	ClientVersion string

	// RuntimeVersions lists the runtime versions the client release
	// supports.
	RuntimeVersions []string
}

// Snapshot is the immutable in-memory copy of the backend records one
// build works from. A snapshot is created by Collect, read by both
// encoders, and discarded when the build finishes; it is never
// refreshed in place. A follow-up build always collects a new one.
type Snapshot struct {
	Packages []Package
	Installs []Install
}

// Store is the read-only query surface the collector consumes. The
// relational layer implements it; tests substitute fixtures.
//
// Consistency across the three queries is the implementation's
// responsibility. The builder issues them sequentially within one
// build and assumes they describe a single coherent state. Stores
// that cannot guarantee this across independent calls should
// implement Snapshotter.
type Store interface {
	// PackageNames lists every package name known to the store.
	PackageNames(ctx context.Context) ([]string, error)

	// PackageReleases lists the releases of one package, each with
	// its requirements, checksum, app name, and build tools. Missing
	// optional metadata comes back empty, not as an error.
	PackageReleases(ctx context.Context, name string) ([]Release, error)

	// Installs lists every install-compatibility record.
	Installs(ctx context.Context) ([]Install, error)
}

// Snapshotter is implemented by stores that can serve all collector
// queries from one isolated read view. Collect prefers it when
// available, so a writer committing between queries never tears the
// snapshot. The store passed to the callback is only valid for the
// duration of the call.
type Snapshotter interface {
	Snapshot(ctx context.Context, collect func(Store) error) error
}

// Collect reads every package, release, and install-compatibility
// record from the store into a fresh Snapshot. It performs no
// filtering and never writes. Any query error fails the collection;
// a partial snapshot is never returned.
//
// When the store implements Snapshotter, all queries run inside one
// Snapshot call.
func Collect(ctx context.Context, store Store) (*Snapshot, error) {
	if snapshotter, ok := store.(Snapshotter); ok {
		var snapshot *Snapshot
		err := snapshotter.Snapshot(ctx, func(view Store) error {
			var err error
			snapshot, err = collect(ctx, view)
			return err
		})
		if err != nil {
			return nil, err
		}
		return snapshot, nil
	}
	return collect(ctx, store)
}

func collect(ctx context.Context, store Store) (*Snapshot, error) {
	names, err := store.PackageNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}

	packages := make([]Package, 0, len(names))
	for _, name := range names {
		releases, err := store.PackageReleases(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("listing releases of %q: %w", name, err)
		}
		packages = append(packages, Package{Name: name, Releases: releases})
	}

	installs, err := store.Installs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installs: %w", err)
	}

	return &Snapshot{Packages: packages, Installs: installs}, nil
}
