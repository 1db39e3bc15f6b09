// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the registry builder.
type Config struct {
	// Environment identifies the deployment type (development, staging,
	// production).
	Environment Environment `yaml:"environment"`

	// DataDir is the base directory for registry data. Other paths
	// default to subdirectories of it and may reference it as
	// ${HEXWEB_DATA}.
	DataDir string `yaml:"data_dir"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Database configures the relational store the collector reads.
	Database DatabaseConfig `yaml:"database"`

	// Store configures the object store artifacts are published to.
	Store StoreConfig `yaml:"store"`

	// Signing configures detached signing of the legacy registry blob.
	Signing SigningConfig `yaml:"signing"`

	// Build configures build triggering.
	Build BuildConfig `yaml:"build"`

	// EnvironmentOverrides contains per-environment overrides. These
	// are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Log      *LogConfig      `yaml:"log,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Signing  *SigningConfig  `yaml:"signing,omitempty"`
	Build    *BuildConfig    `yaml:"build,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`
}

// DatabaseConfig configures the SQLite database holding package,
// release, requirement, and install records.
type DatabaseConfig struct {
	// Path is the database file path.
	// Default: ${HEXWEB_DATA}/registry.db
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// Directory is the root of the directory-backed object store the
	// builder publishes into.
	// Default: ${HEXWEB_DATA}/store
	Directory string `yaml:"directory"`
}

// SigningConfig configures registry signing.
type SigningConfig struct {
	// KeyFile is the path to the ed25519 private key used to sign the
	// compressed legacy blob. Empty disables signing: the signature
	// artifact is simply not produced. A configured but unreadable or
	// malformed key fails the build rather than silently skipping the
	// signature.
	KeyFile string `yaml:"key_file"`
}

// BuildConfig configures build triggering.
type BuildConfig struct {
	// RefreshInterval is an optional duration string ("15m", "1h").
	// When set, the serve command requests a rebuild at this interval
	// in addition to signal-driven triggers. Empty disables periodic
	// refresh.
	RefreshInterval string `yaml:"refresh_interval"`
}

// Interval parses RefreshInterval. Returns 0 when unset.
func (b BuildConfig) Interval() (time.Duration, error) {
	if b.RefreshInterval == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(b.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid refresh_interval %q: %w", b.RefreshInterval, err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("refresh_interval must not be negative, got %q", b.RefreshInterval)
	}
	return interval, nil
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultData := filepath.Join(homeDir, ".local", "share", "hexweb")

	return &Config{
		Environment: Development,
		DataDir:     defaultData,
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Path:     filepath.Join(defaultData, "registry.db"),
			PoolSize: 4,
		},
		Store: StoreConfig{
			Directory: filepath.Join(defaultData, "store"),
		},
		Signing: SigningConfig{
			KeyFile: "",
		},
		Build: BuildConfig{
			RefreshInterval: "",
		},
	}
}

// Load loads configuration from the HEXWEB_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or discovery: if HEXWEB_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("HEXWEB_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HEXWEB_CONFIG environment variable not set; " +
			"set it to the path of your hexweb.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME}, ${HEXWEB_DATA}, and ${VAR:-default} patterns in path fields
// for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific override
// section matching Environment, if present.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}

	if overrides.Database != nil {
		if overrides.Database.Path != "" {
			c.Database.Path = overrides.Database.Path
		}
		if overrides.Database.PoolSize != 0 {
			c.Database.PoolSize = overrides.Database.PoolSize
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Directory != "" {
			c.Store.Directory = overrides.Store.Directory
		}
	}

	if overrides.Signing != nil {
		if overrides.Signing.KeyFile != "" {
			c.Signing.KeyFile = overrides.Signing.KeyFile
		}
	}

	if overrides.Build != nil {
		if overrides.Build.RefreshInterval != "" {
			c.Build.RefreshInterval = overrides.Build.RefreshInterval
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HEXWEB_DATA": c.DataDir,
		"HOME":        os.Getenv("HOME"),
	}

	c.DataDir = expandVars(c.DataDir, vars)
	vars["HEXWEB_DATA"] = c.DataDir // Update for dependent paths.

	c.Database.Path = expandVars(c.Database.Path, vars)
	c.Store.Directory = expandVars(c.Store.Directory, vars)
	c.Signing.KeyFile = expandVars(c.Signing.KeyFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// logLevels are the accepted log.level values.
var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for errors, reporting all of them
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}

	if !contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("database.pool_size must be at least 1, got %d", c.Database.PoolSize))
	}

	if c.Store.Directory == "" {
		errs = append(errs, fmt.Errorf("store.directory is required"))
	}

	if _, err := c.Build.Interval(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured data directories if they don't
// exist. The database file itself is created by the store on open.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.DataDir,
		filepath.Dir(c.Database.Path),
		c.Store.Directory,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
