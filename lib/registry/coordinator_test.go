// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enikki/hex-web/lib/testutil"
)

func TestCoordinator_RunsOnTrigger(t *testing.T) {
	var builds atomic.Int32
	c := NewCoordinator(func(ctx context.Context) error {
		builds.Add(1)
		return nil
	}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Request()
	if err := c.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}
	if got := builds.Load(); got != 1 {
		t.Errorf("build count = %d, want 1", got)
	}

	// Back to idle: a later trigger starts a new build.
	c.Request()
	if err := c.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}
	if got := builds.Load(); got != 2 {
		t.Errorf("build count = %d, want 2", got)
	}
}

func TestCoordinator_CollapsesConcurrentTriggers(t *testing.T) {
	started := make(chan struct{}, 16)
	release := make(chan struct{})
	var builds atomic.Int32
	var running atomic.Int32
	var overlapped atomic.Bool

	build := func(ctx context.Context) error {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer running.Add(-1)

		builds.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}
	c := NewCoordinator(build, discardLogger())

	c.Request()
	testutil.RequireReceive(t, started, 5*time.Second, "first build start")

	// Eight triggers land while the first build is in flight. All of
	// them together must produce exactly one follow-up build.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Request()
		}()
	}
	wg.Wait()

	testutil.RequireSend(t, release, struct{}{}, 5*time.Second, "finishing first build")
	testutil.RequireReceive(t, started, 5*time.Second, "follow-up build start")
	testutil.RequireSend(t, release, struct{}{}, 5*time.Second, "finishing follow-up build")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}

	if got := builds.Load(); got != 2 {
		t.Errorf("build count = %d, want 2 (first build plus one follow-up)", got)
	}
	if overlapped.Load() {
		t.Error("two builds ran concurrently")
	}
}

func TestCoordinator_QuiesceHonorsContext(t *testing.T) {
	release := make(chan struct{})
	c := NewCoordinator(func(ctx context.Context) error {
		<-release
		return nil
	}, discardLogger())

	c.Request()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Quiesce(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Quiesce = %v, want context.DeadlineExceeded", err)
	}

	// Unblock the build so the goroutine exits.
	testutil.RequireSend(t, release, struct{}{}, 5*time.Second, "releasing build")

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := c.Quiesce(waitCtx); err != nil {
		t.Fatalf("Quiesce after release: %v", err)
	}
}

func TestCoordinator_QuiesceIdle(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) error { return nil }, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Quiesce(ctx); err != nil {
		t.Errorf("Quiesce on an idle coordinator = %v", err)
	}
}

func TestCoordinator_BuildFailureReturnsToIdle(t *testing.T) {
	var builds atomic.Int32
	c := NewCoordinator(func(ctx context.Context) error {
		if builds.Add(1) == 1 {
			return errors.New("store unreachable")
		}
		return nil
	}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Request()
	if err := c.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}

	// The failure was logged, not sticky: the next trigger builds.
	c.Request()
	if err := c.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}
	if got := builds.Load(); got != 2 {
		t.Errorf("build count = %d, want 2", got)
	}
}
