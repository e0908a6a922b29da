// Package config loads library configuration from files, environment
// variables and command-line flags.
package config

import (
	"fmt"
	"time"
)

// StoreConfig holds document-store connection settings.
type StoreConfig struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResolveConfig holds reference-resolution tuning.
type ResolveConfig struct {
	// MaxDepth bounds how many reference levels an eager resolution pass
	// descends. Lazy containers always resolve one level per access.
	MaxDepth int `mapstructure:"max_depth"`
}

// Config is the root configuration consumed by the library's components.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Resolve ResolveConfig `mapstructure:"resolve"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Resolve: ResolveConfig{
			MaxDepth: 5,
		},
	}
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Store.Database == "" {
		return fmt.Errorf("store.database is required")
	}
	if c.Store.ConnectTimeout < 0 {
		return fmt.Errorf("store.connect_timeout must not be negative")
	}
	if c.Store.OperationTimeout < 0 {
		return fmt.Errorf("store.operation_timeout must not be negative")
	}
	switch c.Logger.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logger.level %q is not a valid level", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("logger.format %q is not a valid format", c.Logger.Format)
	}
	if c.Resolve.MaxDepth < 1 {
		return fmt.Errorf("resolve.max_depth must be at least 1")
	}
	return nil
}
