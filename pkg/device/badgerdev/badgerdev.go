// Package badgerdev provides a persistent block device backed by BadgerDB.
//
// Each sector is stored as one key-value pair under a fixed key prefix, so a
// formatted filesystem survives process restarts. Unwritten sectors read back
// as zeroes, matching a freshly zeroed physical device.
package badgerdev

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/psarda/sectorfs/pkg/device"
)

// sectorKeyPrefix namespaces sector records inside the database.
// Key layout: 's' || big-endian uint32 sector number.
const sectorKeyPrefix = 's'

// BadgerDevice implements device.BlockDevice on top of a BadgerDB instance.
//
// Thread Safety:
// BadgerDB transactions provide per-sector atomicity; no additional locking
// is needed here.
type BadgerDevice struct {
	db    *badger.DB
	count device.SectorNum
}

// Config contains configuration for opening a BadgerDB-backed device.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	Path string `mapstructure:"path"`

	// SectorCount is the device size in sectors.
	SectorCount device.SectorNum `mapstructure:"sector_count"`

	// InMemory runs BadgerDB without touching disk. Used by tests.
	InMemory bool `mapstructure:"in_memory"`
}

// Open opens (or creates) a BadgerDB-backed device at cfg.Path.
func Open(cfg Config) (*BadgerDevice, error) {
	if cfg.SectorCount == 0 {
		return nil, fmt.Errorf("badgerdev: sector count must be positive")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerdev: open database: %w", err)
	}

	return &BadgerDevice{db: db, count: cfg.SectorCount}, nil
}

func sectorKey(n device.SectorNum) []byte {
	key := make([]byte, 5)
	key[0] = sectorKeyPrefix
	binary.BigEndian.PutUint32(key[1:], uint32(n))
	return key
}

// ReadSector fills buf with sector n. A sector never written reads as zeroes.
func (d *BadgerDevice) ReadSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}
	if err := device.CheckRange(n, d.count); err != nil {
		return err
	}

	return d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sectorKey(n))
		if err == badger.ErrKeyNotFound {
			// Never written: present as a zeroed sector.
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("badgerdev: read sector %d: %w", n, err)
		}
		return item.Value(func(val []byte) error {
			if len(val) != device.SectorSize {
				return fmt.Errorf("badgerdev: sector %d has corrupt length %d", n, len(val))
			}
			copy(buf, val)
			return nil
		})
	})
}

// WriteSector stores buf as sector n.
func (d *BadgerDevice) WriteSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}
	if err := device.CheckRange(n, d.count); err != nil {
		return err
	}

	value := make([]byte, device.SectorSize)
	copy(value, buf)

	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sectorKey(n), value)
	})
	if err != nil {
		return fmt.Errorf("badgerdev: write sector %d: %w", n, err)
	}
	return nil
}

// SectorCount returns the device size in sectors.
func (d *BadgerDevice) SectorCount() device.SectorNum {
	return d.count
}

// Close syncs and closes the underlying database.
func (d *BadgerDevice) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("badgerdev: close database: %w", err)
	}
	return nil
}
