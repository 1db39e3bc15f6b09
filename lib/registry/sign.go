// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
)

// Registry signing uses raw Ed25519 keys: the private key file holds
// the 64-byte private key, and a sibling .pub file holds the 32-byte
// public key clients verify with. The signature is computed over the
// compressed legacy blob, exactly the bytes served to clients, so a
// client verifies what it downloaded without decompressing first.

// GenerateSigningKey creates a new Ed25519 keypair for registry
// signing.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// SaveSigningKey writes a signing keypair to disk: the private key at
// path with 0600 permissions, the public key at path + ".pub" with
// 0644.
func SaveSigningKey(path string, public ed25519.PublicKey, private ed25519.PrivateKey) error {
	if err := os.WriteFile(path, private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(path+".pub", public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// LoadSigningKey loads the private signing key from path. Returns an
// error if the file is missing or has an unexpected size. Callers
// must treat any error as fatal to the build: a configured but
// unusable key silently skipping signature production would downgrade
// a security guarantee.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key has %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// LoadVerifyKey loads the public verification key from path.
func LoadVerifyKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading verify key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verify key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Sign produces the detached signature over a compressed registry
// blob. Ed25519 signatures are deterministic, so re-signing identical
// bytes with the same key yields an identical signature and repeated
// builds stay reproducible end to end.
func Sign(private ed25519.PrivateKey, compressed []byte) []byte {
	return ed25519.Sign(private, compressed)
}

// Verify reports whether signature is a valid detached signature over
// compressed under the given public key. A signature produced by any
// other key fails verification.
func Verify(public ed25519.PublicKey, compressed, signature []byte) bool {
	return ed25519.Verify(public, compressed, signature)
}
