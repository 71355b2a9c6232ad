package config

import "strings"

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"

	// DefaultSMBPort is the standard SMB share port, applied to explicit
	// SMB entries that omit one.
	DefaultSMBPort = "139"
)

// ApplyDefaults fills missing values with defaults and normalizes the log
// level to uppercase.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// GetDefaultConfig returns a configuration with all defaults applied and
// no distribution points, mainly for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
