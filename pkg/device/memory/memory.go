// Package memory provides an in-memory block device.
//
// It is suitable for tests, ephemeral filesystems, and development. Contents
// are lost when the process exits.
package memory

import (
	"fmt"
	"sync"

	"github.com/psarda/sectorfs/pkg/device"
)

// MemoryDevice implements device.BlockDevice backed by a byte slice.
//
// Thread Safety:
// All operations are protected by a read-write mutex, making the device safe
// for concurrent access from multiple goroutines.
type MemoryDevice struct {
	mu      sync.RWMutex
	sectors []byte
	count   device.SectorNum
	closed  bool
}

// New creates a memory device with the given number of sectors, all zeroed.
func New(sectorCount device.SectorNum) *MemoryDevice {
	return &MemoryDevice{
		sectors: make([]byte, int(sectorCount)*device.SectorSize),
		count:   sectorCount,
	}
}

// ReadSector copies sector n into buf.
func (d *MemoryDevice) ReadSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return fmt.Errorf("memory: device is closed")
	}
	if err := device.CheckRange(n, d.count); err != nil {
		return err
	}

	off := int(n) * device.SectorSize
	copy(buf, d.sectors[off:off+device.SectorSize])
	return nil
}

// WriteSector copies buf into sector n.
func (d *MemoryDevice) WriteSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("memory: device is closed")
	}
	if err := device.CheckRange(n, d.count); err != nil {
		return err
	}

	off := int(n) * device.SectorSize
	copy(d.sectors[off:off+device.SectorSize], buf)
	return nil
}

// SectorCount returns the device size in sectors.
func (d *MemoryDevice) SectorCount() device.SectorNum {
	return d.count
}

// Close marks the device closed. The backing memory is released to the GC.
func (d *MemoryDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("memory: device already closed")
	}
	d.closed = true
	d.sectors = nil
	return nil
}
