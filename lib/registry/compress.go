// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compress gzip-compresses an encoded payload. The gzip header is
// left zeroed (no name, no modification time), so identical input
// bytes compress to identical output bytes and published artifacts
// stay reproducible.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	decompressed, readErr := io.ReadAll(reader)
	closeErr := reader.Close()
	if err := errors.Join(readErr, closeErr); err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return decompressed, nil
}
