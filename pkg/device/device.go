// Package device defines the sector-addressed block device abstraction that
// every storage-facing subsystem (cache, free map, inode store) is built on.
//
// A device is a flat array of fixed-size sectors. Implementations live in
// subpackages (memory, badgerdev) and must be safe for concurrent use.
package device

import "fmt"

// SectorSize is the size of one device sector in bytes.
//
// All reads and writes transfer whole sectors. The inode layout, the
// directory entry layout and the free-map geometry all derive from this
// constant; changing it reformats the world.
const SectorSize = 512

// SectorNum addresses one sector on a block device.
//
// Sector numbers double as inode numbers: an inode is identified by the
// sector that holds it. SectorNum is therefore the identity type used across
// the whole system.
type SectorNum uint32

// BlockDevice is a sector-addressed storage device.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Individual sector reads and writes are atomic with respect to each other;
// no ordering is guaranteed across sectors.
type BlockDevice interface {
	// ReadSector fills buf with the contents of sector n.
	// buf must be exactly SectorSize bytes.
	ReadSector(n SectorNum, buf []byte) error

	// WriteSector writes buf to sector n.
	// buf must be exactly SectorSize bytes.
	WriteSector(n SectorNum, buf []byte) error

	// SectorCount returns the total number of sectors on the device.
	SectorCount() SectorNum

	// Close releases the device. Further calls fail.
	Close() error
}

// CheckBuf validates a sector buffer length. Shared by implementations so
// they all fail the same way.
func CheckBuf(buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("device: sector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	return nil
}

// CheckRange validates that sector n exists on a device with count sectors.
func CheckRange(n, count SectorNum) error {
	if n >= count {
		return fmt.Errorf("device: sector %d out of range (device has %d sectors)", n, count)
	}
	return nil
}
