package config

import (
	"strings"

	"github.com/psarda/sectorfs/pkg/cache"
	"github.com/psarda/sectorfs/pkg/fs"
)

// Default values applied when the config file and environment leave a field
// unset.
const (
	DefaultLogLevel    = "INFO"
	DefaultDeviceType  = "memory"
	DefaultSectorCount = 4096
)

// ApplyDefaults fills in any missing configuration values. Log levels are
// normalized to uppercase here so the rest of the system never needs to.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Device.Type == "" {
		cfg.Device.Type = DefaultDeviceType
	}
	if cfg.Device.SectorCount == 0 {
		cfg.Device.SectorCount = DefaultSectorCount
	}

	if cfg.Cache.Sectors == 0 {
		cfg.Cache.Sectors = cache.DefaultSectors
	}

	if cfg.Root.Entries == 0 {
		cfg.Root.Entries = fs.DefaultRootEntries
	}
}
