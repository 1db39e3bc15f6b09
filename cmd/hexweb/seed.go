// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/registry"
)

func seedCommand() *cli.Command {
	var configPath string
	var reset bool

	return &cli.Command{
		Name:    "seed",
		Summary: "Load a package dataset into the catalog",
		Description: "Reads a JSONC dataset of packages, releases, and install records\n" +
			"and upserts it into the catalog database in one transaction.\n" +
			"Re-seeding the same file is idempotent; --reset clears the catalog\n" +
			"first.",
		Usage: "hexweb seed [flags] <dataset.jsonc>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $HEXWEB_CONFIG)")
			flagSet.BoolVar(&reset, "reset", false, "delete all existing records first")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Replace the catalog with a fixture dataset",
				Command:     "hexweb seed --reset testdata/registry.jsonc",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("seed takes exactly one dataset file argument")
			}
			return runSeed(configPath, args[0], reset)
		},
	}
}

func runSeed(configPath, datasetPath string, reset bool) error {
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

	data, err := os.ReadFile(datasetPath)
	if err != nil {
		return err
	}
	snapshot, err := parseSeedData(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", datasetPath, err)
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

	ctx := context.Background()
	if reset {
		if err := catalog.Reset(ctx); err != nil {
			return err
		}
	}
	if err := catalog.Import(ctx, snapshot); err != nil {
		return err
	}

	releaseCount := 0
	for _, pkg := range snapshot.Packages {
		releaseCount += len(pkg.Releases)
	}
	logger.Info("catalog seeded",
		"dataset", datasetPath,
		"packages", len(snapshot.Packages),
		"releases", releaseCount,
		"installs", len(snapshot.Installs),
	)
	return nil
}

// Seed datasets are JSONC so fixtures can carry comments. Checksums
// are hex strings. App names default to the owning package or
// requirement name, matching how releases are published.
type seedDocument struct {
	Packages []seedPackage `json:"packages"`
	Installs []seedInstall `json:"installs"`
}

type seedPackage struct {
	Name     string        `json:"name"`
	Releases []seedRelease `json:"releases"`
}

type seedRelease struct {
	Version      string            `json:"version"`
	Checksum     string            `json:"checksum"`
	App          string            `json:"app"`
	Requirements []seedRequirement `json:"requirements"`
	BuildTool    string            `json:"build_tool"`
	BuildTools   []string          `json:"build_tools"`
}

type seedRequirement struct {
	Name        string `json:"name"`
	App         string `json:"app"`
	Requirement string `json:"requirement"`
	Optional    bool   `json:"optional"`
}

type seedInstall struct {
	ClientVersion   string   `json:"client_version"`
	RuntimeVersions []string `json:"runtime_versions"`
}

// parseSeedData decodes a JSONC dataset into a snapshot ready for
// Catalog.Import.
func parseSeedData(data []byte) (*registry.Snapshot, error) {
	var document seedDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, err
	}

	snapshot := &registry.Snapshot{}
	for _, pkg := range document.Packages {
		if pkg.Name == "" {
			return nil, fmt.Errorf("package with no name")
		}
		out := registry.Package{Name: pkg.Name}
		for _, release := range pkg.Releases {
			converted, err := convertSeedRelease(pkg.Name, release)
			if err != nil {
				return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
			}
			out.Releases = append(out.Releases, converted)
		}
		snapshot.Packages = append(snapshot.Packages, out)
	}

	for _, install := range document.Installs {
		if install.ClientVersion == "" {
			return nil, fmt.Errorf("install with no client_version")
		}
		snapshot.Installs = append(snapshot.Installs, registry.Install{
			ClientVersion:   install.ClientVersion,
			RuntimeVersions: install.RuntimeVersions,
		})
	}

	return snapshot, nil
}

func convertSeedRelease(packageName string, release seedRelease) (registry.Release, error) {
	if release.Version == "" {
		return registry.Release{}, fmt.Errorf("release with no version")
	}

	checksum, err := hex.DecodeString(release.Checksum)
	if err != nil {
		return registry.Release{}, fmt.Errorf("release %s: checksum is not hex: %w", release.Version, err)
	}

	app := release.App
	if app == "" {
		app = packageName
	}

	out := registry.Release{
		Version:    release.Version,
		Checksum:   checksum,
		App:        app,
		BuildTool:  release.BuildTool,
		BuildTools: release.BuildTools,
	}
	for _, requirement := range release.Requirements {
		if requirement.Name == "" {
			return registry.Release{}, fmt.Errorf("release %s: requirement with no name", release.Version)
		}
		requirementApp := requirement.App
		if requirementApp == "" {
			requirementApp = requirement.Name
		}
		out.Requirements = append(out.Requirements, registry.Requirement{
			Name:        requirement.Name,
			App:         requirementApp,
			Requirement: requirement.Requirement,
			Optional:    requirement.Optional,
		})
	}
	return out, nil
}
