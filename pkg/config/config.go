// Package config loads, validates and defaults the sectorfs configuration,
// and assembles the filesystem stack from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete sectorfs configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SECTORFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Device selects and configures the backing block device
	Device DeviceConfig `mapstructure:"device"`

	// Cache configures the buffer cache
	Cache CacheConfig `mapstructure:"cache"`

	// Root configures the root directory built at format time
	Root RootConfig `mapstructure:"root"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// DeviceConfig specifies the block device backing the filesystem.
//
// The Type field determines which device implementation is used.
// Only the corresponding type-specific configuration section is used.
type DeviceConfig struct {
	// Type specifies which device implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// SectorCount is the device size in sectors
	SectorCount uint32 `mapstructure:"sector_count" validate:"required,gte=64"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig configures the BadgerDB-backed device.
type BadgerConfig struct {
	// Path is the directory where BadgerDB stores its files
	Path string `mapstructure:"path"`
}

// CacheConfig configures the buffer cache.
type CacheConfig struct {
	// Sectors is the cache capacity in sectors (0 selects the default)
	Sectors int `mapstructure:"sectors" validate:"gte=0"`
}

// RootConfig configures the root directory built at format time.
type RootConfig struct {
	// Entries is the root directory's initial entry capacity
	Entries int `mapstructure:"entries" validate:"gte=1"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
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

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the SECTORFS_ prefix with underscores,
// e.g. SECTORFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SECTORFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path, honoring
// XDG_CONFIG_HOME and falling back to ~/.config, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sectorfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sectorfs")
}
