// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir is a directory-backed Bucket. Keys map onto file paths below the
// root; slash-separated key prefixes become subdirectories. Writes go
// through a temp file in the root followed by an atomic rename, so a
// reader opening a key never sees a partially written object.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at the given directory, creating it if
// needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("empty object store root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store root: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the bucket's root directory.
func (d *Dir) Root() string { return d.root }

// Get returns the object stored under key.
func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return data, nil
}

// Put stores data under key, replacing any existing object. The
// rename at the end makes the replacement atomic on POSIX
// filesystems.
func (d *Dir) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}

	finalPath := d.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %q: %w", key, err)
	}

	tmpFile, err := os.CreateTemp(d.root, "put-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %q: %w", key, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file for %q: %w", key, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming %q into place: %w", key, err)
	}

	success = true
	return nil
}

// keyPath maps an already-validated key onto a path under the root.
func (d *Dir) keyPath(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}
