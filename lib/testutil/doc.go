// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap channel
// operations in a select with a time.After fallback, so a test that
// deadlocks on a channel fails with a message instead of hanging the
// whole run. The coordinator and refresh-loop tests lean on them.
//
// Failure is always fatal (t.Fatalf, not an error return): a missed
// channel operation means the test's concurrency assumptions are
// broken and nothing after it can be trusted.
package testutil
