// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"fmt"
	"sync"
)

// Mem is an in-memory Bucket. It is the storage backend for tests and
// is safe for concurrent use.
type Mem struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMem returns an empty in-memory bucket.
func NewMem() *Mem {
	return &Mem{objects: make(map[string][]byte)}
}

// Get returns a copy of the object stored under key.
func (m *Mem) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of data under key.
func (m *Mem) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = stored
	return nil
}

// Len returns the number of stored objects. Test helper.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Keys returns the stored keys in unspecified order. Test helper.
func (m *Mem) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}
