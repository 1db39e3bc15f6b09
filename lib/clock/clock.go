// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts time operations for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
//
// Every production function that calls time.Now, time.After, or
// time.NewTicker should accept a Clock parameter (or be a method on a
// struct with a Clock field) instead of calling the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the specified interval. Panics if d <= 0. Equivalent to
	// time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed to release resources.
//
// The C channel has capacity 1, matching time.Ticker. If the consumer
// falls behind, ticks are dropped rather than queued.
type Ticker struct {
	// C delivers ticks. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks will be sent on C after
// Stop returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
