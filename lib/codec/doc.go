// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the registry's standard CBOR encoding
// configuration.
//
// Every binary payload the registry publishes (the legacy table blob,
// the names and versions listings, and the per-package release
// payloads) is CBOR encoded through this package before compression.
// Centralizing the configuration means every payload encodes
// identically without duplicating encoder setup.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes, which
// gives the builder its reproducibility guarantee: rebuilding from an
// unchanged snapshot publishes byte-identical artifacts.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Wire record types use integer field keys (`cbor:"1,keyasint"`) so
// payloads stay compact and fields can be added without renumbering;
// the legacy table's tuple values use `toarray` structs to match the
// positional layout readers expect.
package codec
