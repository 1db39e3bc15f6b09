// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package objstore provides the flat key→bytes object store the
// registry publishes into.
//
// The [Bucket] interface is the whole contract: Get and Put on string
// keys, no listing, no multi-key transactions. The absence of
// multi-key transactions means a reader can observe a mixed artifact
// set while a build's writes are in flight, and callers are expected
// to tolerate that window.
//
// Two implementations are provided: [Mem] (mutex-guarded map, used
// throughout the tests) and [Dir] (directory-backed with atomic
// temp-file-plus-rename writes, used by the hexweb binary). A remote
// blob store implementing Bucket slots in without touching the
// publisher.
package objstore
