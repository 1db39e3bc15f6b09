// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// hexweb builds and publishes package registry artifacts: the legacy
// keyed table consumed by older clients and the split names, versions,
// and per-package listings consumed by newer ones. The serve command
// runs the build service; the rest are one-shot operator tools.
package main

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/config"
	"github.com/enikki/hex-web/lib/process"
	"github.com/enikki/hex-web/lib/registry"
	"github.com/enikki/hex-web/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "hexweb",
		Description: "hexweb builds package registry artifacts from the catalog database\n" +
			"and publishes them to an object store.",
		Subcommands: []*cli.Command{
			buildCommand(),
			serveCommand(),
			seedCommand(),
			keygenCommand(),
			verifyCommand(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Run one registry build with the config from $HEXWEB_CONFIG",
				Command:     "hexweb build",
			},
			{
				Description: "Run the build service, rebuilding on SIGHUP",
				Command:     "hexweb serve --config /etc/hexweb/hexweb.yaml",
			},
			{
				Description: "Check the published artifacts against a signing public key",
				Command:     "hexweb verify --key /etc/hexweb/signing-key.pub",
			},
		},
	}
}

// loadConfig loads and validates configuration. An explicit path wins
// over the HEXWEB_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger from the configured level.
// Commands log to stderr so stdout stays clean for command output.
func setupLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info", "":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	})), nil
}

// loadSigningKey loads the configured registry signing key. An
// unconfigured key disables signing. A configured but unreadable or
// malformed key is a hard error so a build never silently publishes
// without its signature.
func loadSigningKey(cfg *config.Config) (ed25519.PrivateKey, error) {
	if cfg.Signing.KeyFile == "" {
		return nil, nil
	}
	key, err := registry.LoadSigningKey(cfg.Signing.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return key, nil
}

func versionCommand() *cli.Command {
	var full bool

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Usage:   "hexweb version [--full]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&full, "full", false, "include Go version and platform")
			return flagSet
		},
		Run: func(args []string) error {
			if full {
				fmt.Printf("hexweb %s\n", version.Full())
				return nil
			}
			fmt.Printf("hexweb %s\n", version.Info())
			return nil
		},
	}
}
