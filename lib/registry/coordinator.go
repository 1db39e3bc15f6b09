// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"log/slog"
	"sync"
)

// Coordinator serializes full-build triggers. At most one build runs
// at any instant. Triggers arriving while a build is in flight
// collapse into exactly one follow-up build, which starts
// automatically when the in-flight build finishes and collects a
// fresh snapshot rather than reusing the one just consumed. Build
// failures are logged and do not stop the coordinator; the next
// trigger starts the next build.
type Coordinator struct {
	build  func(context.Context) error
	logger *slog.Logger

	// mu guards the state machine below.
	mu       sync.Mutex
	building bool          // a build goroutine is running
	pending  bool          // one or more triggers arrived mid-build
	idle     chan struct{} // closed when building drops back to false
}

// NewCoordinator creates a Coordinator around one build function,
// typically (*Builder).Build.
func NewCoordinator(build func(context.Context) error, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{build: build, logger: logger}
}

// Request triggers a full build. When the coordinator is idle the
// build starts immediately on its own goroutine; when a build is
// already running the trigger marks a rebuild pending and returns.
// Request never blocks on the build and is safe to call from any
// goroutine.
func (c *Coordinator) Request() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.building {
		c.pending = true
		return
	}
	c.building = true
	c.idle = make(chan struct{})
	go c.run(c.idle)
}

// run executes builds until no rebuild is pending, then closes idle
// and exits. Builds run under a background context: a build, once
// started, is never cancelled by whoever triggered it.
func (c *Coordinator) run(idle chan struct{}) {
	for {
		if err := c.build(context.Background()); err != nil {
			c.logger.Error("registry build failed", "error", err)
		}

		c.mu.Lock()
		if c.pending {
			c.pending = false
			c.mu.Unlock()
			continue
		}
		c.building = false
		close(idle)
		c.mu.Unlock()
		return
	}
}

// Quiesce blocks until the coordinator is idle: the current build and
// any follow-up it collapsed triggers into have finished. Returns
// early with the context's error if ctx is done first. Triggers
// arriving after Quiesce observes the idle state do not extend the
// wait.
func (c *Coordinator) Quiesce(ctx context.Context) error {
	c.mu.Lock()
	if !c.building {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
