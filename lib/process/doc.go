// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. It centralizes
// the one legitimate raw I/O pattern that exists before the structured
// logger: fatal error reporting to stderr followed by process exit
// after an unrecoverable error in main().
package process
