// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/clock"
	"github.com/enikki/hex-web/lib/objstore"
	"github.com/enikki/hex-web/lib/registry"
)

func serveCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "serve",
		Summary: "Run the registry build service",
		Description: "Builds the registry once at startup, then rebuilds on SIGHUP and,\n" +
			"when build.refresh_interval is configured, on a periodic timer.\n" +
			"Triggers arriving during a build collapse into one follow-up build\n" +
			"over a fresh snapshot. SIGINT or SIGTERM shuts the service down\n" +
			"after any in-flight build finishes.",
		Usage: "hexweb serve [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $HEXWEB_CONFIG)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Trigger a rebuild of a running service",
				Command:     "kill -HUP $(pidof hexweb)",
			},
		},
		Run: func(args []string) error {
			return runServe(configPath)
		},
	}
}

// quiesceTimeout bounds how long shutdown waits for an in-flight
// build. Builds are never cancelled mid-flight; a build that outlives
// the timeout keeps the failure loud instead of hanging shutdown.
const quiesceTimeout = time.Minute

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	catalog, err := OpenCatalog(CatalogConfig{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer catalog.Close()

	bucket, err := objstore.NewDir(cfg.Store.Directory)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	signingKey, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}

	builder, err := registry.NewBuilder(registry.BuilderConfig{
		Store:      catalog,
		Bucket:     bucket,
		SigningKey: signingKey,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	coordinator := registry.NewCoordinator(builder.Build, logger)

	interval, err := cfg.Build.Interval()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	logger.Info("registry build service running",
		"database", cfg.Database.Path,
		"store", cfg.Store.Directory,
		"signing", signingKey != nil,
		"refresh_interval", interval,
	)

	coordinator.Request()
	refreshLoop(ctx, clock.Real(), interval, hangup, coordinator, logger)

	logger.Info("shutting down")
	quiesceCtx, cancel := context.WithTimeout(context.Background(), quiesceTimeout)
	defer cancel()
	if err := coordinator.Quiesce(quiesceCtx); err != nil {
		logger.Warn("shutdown with a build still running", "error", err)
	}
	return nil
}

// buildTrigger is the slice of the coordinator the refresh loop uses.
type buildTrigger interface {
	Request()
}

// refreshLoop requests rebuilds on SIGHUP and, when interval is
// positive, on each tick. Returns when ctx is cancelled.
func refreshLoop(ctx context.Context, clk clock.Clock, interval time.Duration, hangup <-chan os.Signal, trigger buildTrigger, logger *slog.Logger) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			logger.Info("rebuild requested", "trigger", "SIGHUP")
			trigger.Request()
		case <-tick:
			logger.Info("rebuild requested", "trigger", "refresh interval")
			trigger.Request()
		}
	}
}
