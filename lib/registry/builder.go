// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"

	"github.com/enikki/hex-web/lib/objstore"
)

// Storage keys for published artifacts. Keys are fixed: every build
// rewrites the same keys, replacing the previous build's artifacts.
const (
	// KeyRegistry is the compressed legacy blob.
	KeyRegistry = "registry.ets.gz"

	// KeySignature is the detached signature over the compressed
	// legacy blob. Only written when a signing key is configured.
	KeySignature = "registry.ets.gz.signed"

	// KeyNames is the compressed names listing.
	KeyNames = "names"

	// KeyVersions is the compressed versions listing.
	KeyVersions = "versions"
)

// PackageKey returns the storage key of one package's compressed
// release listing.
func PackageKey(name string) string {
	return "packages/" + name
}

// artifactCacheControl is served with every registry artifact.
// Clients and CDNs may cache a build for up to ten minutes before
// refetching.
const artifactCacheControl = "public, max-age=600"

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// Store supplies the snapshot data.
	Store Store

	// Bucket receives the published artifacts.
	Bucket objstore.Bucket

	// SigningKey signs the compressed legacy blob. Nil disables
	// signature production; that is a configuration branch, not an
	// error.
	SigningKey ed25519.PrivateKey

	// Logger for build progress.
	Logger *slog.Logger
}

// Builder runs one full registry build: collect a snapshot, encode
// both wire formats, compress, sign, publish. Builds are idempotent
// over identical source data, so a failed build is safe to re-run.
//
// Builder itself holds no mutable state and is safe for concurrent
// use, but concurrent builds waste work and interleave their
// publishes; serialize triggers through a Coordinator.
type Builder struct {
	store      Store
	bucket     objstore.Bucket
	signingKey ed25519.PrivateKey
	logger     *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(config BuilderConfig) (*Builder, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Bucket == nil {
		return nil, fmt.Errorf("bucket is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		store:      config.Store,
		bucket:     config.Bucket,
		signingKey: config.SigningKey,
		logger:     logger,
	}, nil
}

// Build runs one complete build. Any failure aborts the build with
// nothing retried; artifacts already published by earlier builds stay
// untouched when the failure precedes the first write.
//
// Artifacts are published leaf-first: per-package listings, then the
// versions and names listings, then the legacy blob and its
// signature. A reader that discovers a package through a fresh names
// listing therefore finds its per-package listing already rewritten.
// The bucket offers no multi-key transactions, so a reader holding a
// listing from the previous build can still observe mixed builds
// across keys during the publish window; that gap is accepted rather
// than hidden.
func (b *Builder) Build(ctx context.Context) error {
	started := time.Now()

	snapshot, err := Collect(ctx, b.store)
	if err != nil {
		return fmt.Errorf("collecting snapshot: %w", err)
	}

	table := BuildTable(snapshot)
	blob, err := EncodeTable(table)
	if err != nil {
		return err
	}
	compressed, err := Compress(blob)
	if err != nil {
		return fmt.Errorf("compressing registry table: %w", err)
	}

	// The signature covers the compressed bytes, exactly what a
	// client downloads from KeyRegistry.
	var signature []byte
	if b.signingKey != nil {
		signature = Sign(b.signingKey, compressed)
	}

	names, err := encodeCompressed(EncodeNames, snapshot, "names listing")
	if err != nil {
		return err
	}
	versions, err := encodeCompressed(EncodeVersions, snapshot, "versions listing")
	if err != nil {
		return err
	}

	packages := make(map[string][]byte, len(snapshot.Packages))
	for _, pkg := range snapshot.Packages {
		payload, err := EncodePackage(pkg)
		if err != nil {
			return err
		}
		if packages[pkg.Name], err = Compress(payload); err != nil {
			return fmt.Errorf("compressing package %q: %w", pkg.Name, err)
		}
	}

	for _, name := range sortedNames(snapshot) {
		if err := b.publish(ctx, PackageKey(name), packages[name]); err != nil {
			return err
		}
	}
	if err := b.publish(ctx, KeyVersions, versions); err != nil {
		return err
	}
	if err := b.publish(ctx, KeyNames, names); err != nil {
		return err
	}
	if err := b.publish(ctx, KeyRegistry, compressed); err != nil {
		return err
	}
	if signature != nil {
		if err := b.publish(ctx, KeySignature, signature); err != nil {
			return err
		}
	}

	releases := 0
	for _, pkg := range snapshot.Packages {
		releases += len(pkg.Releases)
	}
	b.logger.Info("registry built",
		"packages", len(snapshot.Packages),
		"releases", releases,
		"installs", len(snapshot.Installs),
		"signed", signature != nil,
		"duration", time.Since(started),
	)
	return nil
}

// encodeCompressed runs one snapshot encoder and compresses its
// output, wrapping errors with the payload name.
func encodeCompressed(encode func(*Snapshot) ([]byte, error), snapshot *Snapshot, what string) ([]byte, error) {
	payload, err := encode(snapshot)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", what, err)
	}
	return compressed, nil
}

// publish writes one artifact to the bucket and logs it. A write
// failure fails the whole build; the caller does not retry.
func (b *Builder) publish(ctx context.Context, key string, data []byte) error {
	opts := objstore.PutOptions{
		ContentType:  "application/octet-stream",
		CacheControl: artifactCacheControl,
	}
	if err := b.bucket.Put(ctx, key, data, opts); err != nil {
		return fmt.Errorf("publishing %s: %w", key, err)
	}
	b.logger.Debug("artifact published",
		"key", key,
		"bytes", len(data),
		"digest", ArtifactDigest(data),
	)
	return nil
}

// ArtifactDigest returns a short BLAKE3 digest of an artifact, enough
// to correlate published bytes across builds and verify runs.
func ArtifactDigest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
