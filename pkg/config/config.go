// Package config loads and validates the jamfdist configuration and turns
// it into a ready distribution.Set.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (JAMFDIST_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Each repository entry selects a backend with a `type` tag; the fields a
// backend requires live flat on the entry and are decoded per type by the
// factory functions. Entries without a type tag take the deprecated legacy
// path: resolution by name against the server's distribution point
// inventory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete jamfdist configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Repos lists the configured distribution points, in fan-out order
	Repos []RepoConfig `mapstructure:"repos" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// RepoConfig is one distribution point entry. Type selects the backend;
// the backend-specific connection fields are kept in Options and decoded
// by the matching factory. Unknown fields are retained but unused.
type RepoConfig struct {
	// Type selects the backend: AFP, SMB, JDS, or CDP. Empty selects the
	// deprecated legacy resolution of Name against the server inventory.
	Type string `mapstructure:"type" validate:"omitempty,oneof=AFP SMB JDS CDP"`

	// Name identifies the distribution point. Required for legacy
	// entries, where it must match the name in the server inventory.
	Name string `mapstructure:"name"`

	// Password is the read-write account password. Required for legacy
	// entries; for typed entries it is a fallback when the entry's own
	// password field is absent.
	Password string `mapstructure:"password"`

	// Options carries the remaining backend-specific fields verbatim.
	Options map[string]any `mapstructure:",remain"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("JAMFDIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// getConfigDir returns the configuration directory path, honoring
// XDG_CONFIG_HOME and falling back to ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "jamfdist")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "jamfdist")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
