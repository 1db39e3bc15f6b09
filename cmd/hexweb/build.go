// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/objstore"
	"github.com/enikki/hex-web/lib/registry"
)

func buildCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "build",
		Summary: "Run one registry build and exit",
		Description: "Collects a snapshot of the catalog, encodes the legacy table and\n" +
			"the split listings, and publishes every artifact to the object\n" +
			"store. Any failure leaves the previously published artifacts in\n" +
			"place and exits non-zero.",
		Usage: "hexweb build [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $HEXWEB_CONFIG)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Build with an explicit config file",
				Command:     "hexweb build --config /etc/hexweb/hexweb.yaml",
			},
		},
		Run: func(args []string) error {
			return runBuild(configPath)
		},
	}
}

func runBuild(configPath string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return builder.Build(ctx)
}
