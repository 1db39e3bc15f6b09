// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive reads one value from ch within timeout, or fails the
// test. It wraps the select-with-timeout dance so a concurrency test
// cannot hang the whole run on a channel that never delivers.
//
//	result := testutil.RequireReceive(t, ch, 5*time.Second, "waiting for build start")
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", message(msgAndArgs))
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, message(msgAndArgs))
	}
	panic("unreachable")
}

// RequireSend sends v on ch within timeout, or fails the test.
//
//	testutil.RequireSend(t, gate, struct{}{}, 5*time.Second, "releasing build")
func RequireSend[T any](t testing.TB, ch chan<- T, v T, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case ch <- v:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, message(msgAndArgs))
	}
}

// RequireClosed waits for ch to close (or deliver a value) within
// timeout, or fails the test. Use it for completion channels that
// signal by closing.
//
//	testutil.RequireClosed(t, done, 5*time.Second, "coordinator idle")
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for channel close: %s", timeout, message(msgAndArgs))
	}
}

// message renders the trailing message arguments: a plain string, a
// format string plus operands, or anything else via %v.
func message(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if format, ok := msgAndArgs[0].(string); ok {
		if len(msgAndArgs) == 1 {
			return format
		}
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs)
}
