// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry builds the immutable index artifacts that package
// manager clients download to resolve dependencies offline. It is the
// pure build pipeline: the HTTP surface and the relational store sit
// on either side of it and are consumed through narrow interfaces.
//
// The pipeline runs in four stages, each a pure function over the
// output of the previous one:
//
//   - Collection: read-only queries against a Store produce a
//     Snapshot, the immutable in-memory copy of every package,
//     release, requirement, and install-compatibility record. Each
//     build owns its snapshot exclusively; nothing downstream mutates
//     it.
//
//   - Legacy table: the snapshot is folded into a single keyed table
//     (format version marker, per-package version lists, per-release
//     requirement tuples, one aggregated install-compatibility entry)
//     and serialized with the deterministic CBOR encoding from
//     lib/codec. Identical snapshots produce byte-identical blobs.
//
//   - Split format: the same snapshot independently yields a names
//     listing, a versions listing, and one release listing per
//     package. The two encoders share nothing but the snapshot, so
//     either wire format can evolve without touching the other.
//
//   - Publication: every payload is gzip-compressed, the legacy blob
//     is optionally signed with an Ed25519 key, and the artifacts are
//     written to an objstore.Bucket under fixed keys.
//
// A Builder wires the stages together; a Coordinator serializes
// concurrent build triggers so at most one build runs at a time and
// triggers arriving mid-build collapse into exactly one follow-up
// build over a fresh snapshot.
//
// The bucket offers no multi-key transactions, so a reader fetching
// two artifacts during a publish can observe them from different
// builds. The publish order in Builder shrinks that window but cannot
// close it; see the Builder documentation.
package registry
