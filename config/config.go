// Package config loads runtime configuration for the execution engine. Values
// come from an optional TOML file, overlaid by FANMESH_* environment
// variables; anything unset falls back to defaults that work out of the box.
//
// Environment names nest section and field: FANMESH_POOL_WORKERS_PER_LEVEL,
// FANMESH_WORKSPACE_ROOT, FANMESH_LOGGING_LEVEL, FANMESH_LOGGING_FORMAT.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// PoolConfig bounds the depth-indexed worker pool.
type PoolConfig struct {
	// WorkersPerLevel is the worker bound applied to every depth's pool.
	WorkersPerLevel int `toml:"workers_per_level" envconfig:"WORKERS_PER_LEVEL"`
}

// WorkspaceConfig locates caller-scoped storage.
type WorkspaceConfig struct {
	// Root is the directory holding per-caller shared directories.
	Root string `toml:"root" envconfig:"ROOT"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" envconfig:"LEVEL"`

	// Format is "text" or "json".
	Format string `toml:"format" envconfig:"FORMAT"`
}

// Config is the full runtime configuration.
type Config struct {
	Pool      PoolConfig      `toml:"pool"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pool:      PoolConfig{WorkersPerLevel: 4},
		Workspace: WorkspaceConfig{Root: "workspace"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the effective configuration: defaults, then the TOML file at
// path (skipped when path is empty or the file does not exist), then FANMESH_*
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := envconfig.Process("FANMESH", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Pool.WorkersPerLevel < 1 {
		return fmt.Errorf("config: pool.workers_per_level must be at least 1, got %d", c.Pool.WorkersPerLevel)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	return nil
}
