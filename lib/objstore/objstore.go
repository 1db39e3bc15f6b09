// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotExist is returned by Get when no object is stored under the
// requested key. Test with errors.Is.
var ErrNotExist = errors.New("object does not exist")

// PutOptions carries object metadata for stores that support it.
// Local implementations ignore these fields; a remote blob store
// would map them onto its own object headers.
type PutOptions struct {
	// ContentType is the MIME type served with the object.
	ContentType string

	// CacheControl is the cache policy served with the object.
	CacheControl string
}

// Bucket is a flat key→bytes object store. Keys may contain forward
// slashes ("packages/decimal"); implementations decide how to map
// them onto their backing storage.
//
// Bucket offers no multi-key transactions. A sequence of Puts is
// visible to readers one key at a time, in whatever order the writes
// land.
type Bucket interface {
	// Get returns the object stored under key. Returns an error
	// wrapping ErrNotExist when no object is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any existing object.
	// Readers never observe a partial write: they see either the
	// previous object or the new one in full.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
}

// validateKey rejects keys that are empty or would escape a
// directory-backed bucket. Registry keys are fixed strings plus
// package names, so anything outside this shape is a caller bug.
func validateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("empty object key")
	case strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/"):
		return fmt.Errorf("object key %q has a leading or trailing slash", key)
	case strings.Contains(key, "\\"):
		return fmt.Errorf("object key %q contains a backslash", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("object key %q contains an invalid path element", key)
		}
	}
	return nil
}
