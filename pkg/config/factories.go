package config

import (
	"fmt"

	"github.com/psarda/sectorfs/internal/logger"
	"github.com/psarda/sectorfs/pkg/cache"
	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/device/badgerdev"
	"github.com/psarda/sectorfs/pkg/device/memory"
	"github.com/psarda/sectorfs/pkg/directory"
	"github.com/psarda/sectorfs/pkg/freemap"
	"github.com/psarda/sectorfs/pkg/fs"
	"github.com/psarda/sectorfs/pkg/inode"
)

// Stack is the fully assembled filesystem with handles onto the layers the
// shell wants to inspect (cache counters, free-sector counts).
type Stack struct {
	FS      *fs.FileSystem
	Device  device.BlockDevice
	Cache   *cache.Cache
	FreeMap *freemap.FreeMap
}

// Close shuts the filesystem down (free-map save, cache flush and teardown)
// and then closes the device.
func (s *Stack) Close() error {
	if err := s.FS.Close(); err != nil {
		s.Device.Close()
		return err
	}
	return s.Device.Close()
}

// BuildFileSystem assembles the filesystem stack from configuration.
//
// Initialization order: the backing device is opened first (a missing or
// unopenable device is fatal), then the buffer cache, the free-space map,
// the inode subsystem and the directory service are stacked on top. With
// format set, fresh free-space structures and an empty root directory are
// built; otherwise the persisted free map is loaded.
func BuildFileSystem(cfg *Config, format bool) (*Stack, error) {
	dev, err := openDevice(&cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("no usable file system device: %w", err)
	}

	c := cache.New(dev, cfg.Cache.Sectors)

	fm, err := freemap.New(c)
	if err != nil {
		dev.Close()
		return nil, err
	}

	inodes := inode.NewStore(c, fm)
	dirs := directory.NewService(inodes)

	filesystem, err := fs.New(fs.Options{
		Allocator:   fm,
		Inodes:      inodes,
		Dirs:        dirs,
		Cache:       c,
		RootEntries: cfg.Root.Entries,
	})
	if err != nil {
		dev.Close()
		return nil, err
	}

	if format {
		if err := fm.Format(fs.RootSector); err != nil {
			dev.Close()
			return nil, fmt.Errorf("format free map: %w", err)
		}
		if err := filesystem.Format(); err != nil {
			dev.Close()
			return nil, err
		}
	} else {
		if err := fm.Load(); err != nil {
			dev.Close()
			return nil, err
		}
	}

	logger.Info("file system up: %s device, %d sectors, cache %d sectors",
		cfg.Device.Type, cfg.Device.SectorCount, cfg.Cache.Sectors)

	return &Stack{FS: filesystem, Device: dev, Cache: c, FreeMap: fm}, nil
}

// openDevice opens the configured block device.
func openDevice(cfg *DeviceConfig) (device.BlockDevice, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(device.SectorNum(cfg.SectorCount)), nil
	case "badger":
		return badgerdev.Open(badgerdev.Config{
			Path:        cfg.Badger.Path,
			SectorCount: device.SectorNum(cfg.SectorCount),
		})
	default:
		return nil, fmt.Errorf("unknown device type %q", cfg.Type)
	}
}
