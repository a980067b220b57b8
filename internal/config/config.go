// Package config loads signerstate runtime configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/signerstate/internal/backup"
)

// Config is the top-level configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Sync   Sync   `yaml:"sync"`
	Backup Backup `yaml:"backup"`
}

// Sync controls the periodic synchronization routine.
type Sync struct {
	// Interval between sync rounds.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds a single round, including fetch and push.
	Timeout time.Duration `yaml:"timeout"`
}

// Backup selects the durable backup backend.
// An empty Path disables backups.
type Backup struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Defaults.
const (
	DefaultLogLevel     = "info"
	DefaultSyncInterval = 30 * time.Second
	DefaultSyncTimeout  = 10 * time.Second
	DefaultBackupDriver = backup.DriverSQLite
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Sync: Sync{
			Interval: DefaultSyncInterval,
			Timeout:  DefaultSyncTimeout,
		},
		Backup: Backup{
			Driver: DefaultBackupDriver,
		},
	}
}

// Load reads path, fills unset fields with defaults and validates the result.
// Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data the same way Load does. Empty data yields Default().
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %s", c.Sync.Timeout)
	}
	if c.Sync.Timeout > c.Sync.Interval {
		return fmt.Errorf("sync.timeout (%s) must not exceed sync.interval (%s)", c.Sync.Timeout, c.Sync.Interval)
	}
	switch c.Backup.Driver {
	case backup.DriverSQLite, backup.DriverPebble:
	default:
		return fmt.Errorf("backup.driver must be %q or %q, got %q", backup.DriverSQLite, backup.DriverPebble, c.Backup.Driver)
	}
	return nil
}

// BackupEnabled reports whether a backup path is configured.
func (c Config) BackupEnabled() bool {
	return c.Backup.Path != ""
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s)
	}
}
