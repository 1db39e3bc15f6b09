// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the registry
// builder.
//
// Configuration is loaded from a single file specified by either the
// HEXWEB_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. The signing key, for example, is
// typically configured only in the production section.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${HEXWEB_DATA}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Log, Database, Store, Signing, Build
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other hex-web packages.
package config
