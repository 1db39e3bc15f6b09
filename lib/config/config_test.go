// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected log.level=info, got %s", cfg.Log.Level)
	}

	if cfg.Database.PoolSize != 4 {
		t.Errorf("expected pool_size=4, got %d", cfg.Database.PoolSize)
	}

	if cfg.Signing.KeyFile != "" {
		t.Errorf("expected signing disabled by default, got key_file=%s", cfg.Signing.KeyFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_RequiresHexwebConfig(t *testing.T) {
	origConfig := os.Getenv("HEXWEB_CONFIG")
	defer os.Setenv("HEXWEB_CONFIG", origConfig)

	os.Unsetenv("HEXWEB_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when HEXWEB_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "HEXWEB_CONFIG") {
		t.Errorf("error should mention HEXWEB_CONFIG, got %q", err.Error())
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "hexweb.yaml")
	configContent := `
environment: staging
data_dir: /srv/hexweb
database:
  path: /srv/hexweb/db/registry.db
  pool_size: 8
store:
  directory: /srv/hexweb/objects
signing:
  key_file: /etc/hexweb/signing-key
build:
  refresh_interval: 15m
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("environment = %s, want staging", cfg.Environment)
	}
	if cfg.Database.Path != "/srv/hexweb/db/registry.db" {
		t.Errorf("database.path = %s", cfg.Database.Path)
	}
	if cfg.Database.PoolSize != 8 {
		t.Errorf("pool_size = %d, want 8", cfg.Database.PoolSize)
	}
	if cfg.Signing.KeyFile != "/etc/hexweb/signing-key" {
		t.Errorf("key_file = %s", cfg.Signing.KeyFile)
	}

	interval, err := cfg.Build.Interval()
	if err != nil {
		t.Fatalf("Interval: %v", err)
	}
	if interval != 15*time.Minute {
		t.Errorf("refresh interval = %v, want 15m", interval)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileExpandsVariables(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "hexweb.yaml")
	configContent := `
data_dir: /srv/hexweb
database:
  path: ${HEXWEB_DATA}/registry.db
store:
  directory: ${HEXWEB_DATA}/${HEXWEB_STORE_NAME:-store}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Database.Path != "/srv/hexweb/registry.db" {
		t.Errorf("database.path = %s, want /srv/hexweb/registry.db", cfg.Database.Path)
	}
	if cfg.Store.Directory != "/srv/hexweb/store" {
		t.Errorf("store.directory = %s, want /srv/hexweb/store (default expansion)", cfg.Store.Directory)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "hexweb.yaml")
	configContent := `
environment: production
data_dir: /srv/hexweb
production:
  signing:
    key_file: /etc/hexweb/prod-signing-key
  log:
    level: warn
development:
  log:
    level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Signing.KeyFile != "/etc/hexweb/prod-signing-key" {
		t.Errorf("production signing override not applied: key_file = %s", cfg.Signing.KeyFile)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("production log override not applied: level = %s", cfg.Log.Level)
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Environment = "testing"
	cfg.Database.Path = ""
	cfg.Database.PoolSize = 0
	cfg.Log.Level = "verbose"
	cfg.Build.RefreshInterval = "often"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}

	message := err.Error()
	for _, want := range []string{
		"invalid environment",
		"database.path",
		"pool_size",
		"log.level",
		"refresh_interval",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("validation error missing %q: %s", want, message)
		}
	}
}

func TestIntervalNegativeRejected(t *testing.T) {
	b := BuildConfig{RefreshInterval: "-5m"}
	if _, err := b.Interval(); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.Database.Path = filepath.Join(root, "data", "db", "registry.db")
	cfg.Store.Directory = filepath.Join(root, "data", "store")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}

	for _, dir := range []string{
		cfg.DataDir,
		filepath.Join(root, "data", "db"),
		cfg.Store.Directory,
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("stat %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}
