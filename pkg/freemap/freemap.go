// Package freemap implements bitmap-based free-space tracking.
//
// One bit per device sector. The bitmap lives in memory while the
// filesystem is up and is persisted to a reserved region at the tail of the
// device; a superblock at sector 0 records the geometry so Load can verify
// it is reading the map it expects.
package freemap

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/psarda/sectorfs/pkg/device"
)

// SuperblockSector is the fixed sector holding the superblock.
const SuperblockSector device.SectorNum = 0

// superblock magic, "SFMP".
const magic = 0x504d4653

const bitsPerSector = device.SectorSize * 8

// FreeMap tracks which sectors are allocated. It implements fs.Allocator.
//
// Thread Safety:
// All operations are protected by a single mutex; individual allocations
// and releases are safe under concurrent access.
type FreeMap struct {
	mu   sync.Mutex
	dev  device.BlockDevice
	bits []byte

	count        device.SectorNum // sectors on the device
	bitmapStart  device.SectorNum // first sector of the persisted bitmap
	bitmapLength device.SectorNum // sectors the persisted bitmap occupies
}

// New creates a free map sized for dev. The map starts empty; call Format
// to build fresh state or Load to read persisted state.
func New(dev device.BlockDevice) (*FreeMap, error) {
	count := dev.SectorCount()
	bitmapLength := device.SectorNum((uint64(count) + bitsPerSector - 1) / bitsPerSector)
	// Superblock + bitmap + root must fit with something left over.
	if count < bitmapLength+8 {
		return nil, fmt.Errorf("freemap: device too small (%d sectors)", count)
	}
	return &FreeMap{
		dev:          dev,
		bits:         make([]byte, int(bitmapLength)*device.SectorSize),
		count:        count,
		bitmapStart:  count - bitmapLength,
		bitmapLength: bitmapLength,
	}, nil
}

func (m *FreeMap) isUsed(n device.SectorNum) bool {
	return m.bits[n/8]&(1<<(n%8)) != 0
}

func (m *FreeMap) setUsed(n device.SectorNum) {
	m.bits[n/8] |= 1 << (n % 8)
}

func (m *FreeMap) setFree(n device.SectorNum) {
	m.bits[n/8] &^= 1 << (n % 8)
}

// Format builds a fresh map: everything free except the superblock, the
// bitmap's own region, and any extra sectors the caller reserves (the root
// directory's fixed sector, typically). The fresh state is persisted.
func (m *FreeMap) Format(reserved ...device.SectorNum) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.bits {
		m.bits[i] = 0
	}
	m.setUsed(SuperblockSector)
	for s := m.bitmapStart; s < m.count; s++ {
		m.setUsed(s)
	}
	for _, s := range reserved {
		if err := device.CheckRange(s, m.count); err != nil {
			return err
		}
		m.setUsed(s)
	}

	return m.saveLocked()
}

// Load reads the superblock and the persisted bitmap back from the device.
func (m *FreeMap) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf [device.SectorSize]byte
	if err := m.dev.ReadSector(SuperblockSector, buf[:]); err != nil {
		return fmt.Errorf("freemap: read superblock: %w", err)
	}
	if binary.LittleEndian.Uint32(buf[0:]) != magic {
		return fmt.Errorf("freemap: bad superblock magic (device not formatted?)")
	}
	if got := device.SectorNum(binary.LittleEndian.Uint32(buf[4:])); got != m.count {
		return fmt.Errorf("freemap: superblock sector count %d does not match device %d", got, m.count)
	}
	if got := device.SectorNum(binary.LittleEndian.Uint32(buf[8:])); got != m.bitmapStart {
		return fmt.Errorf("freemap: superblock bitmap start %d does not match computed %d", got, m.bitmapStart)
	}

	for i := device.SectorNum(0); i < m.bitmapLength; i++ {
		off := int(i) * device.SectorSize
		if err := m.dev.ReadSector(m.bitmapStart+i, m.bits[off:off+device.SectorSize]); err != nil {
			return fmt.Errorf("freemap: read bitmap sector %d: %w", i, err)
		}
	}
	return nil
}

// Save persists the superblock and bitmap to the device.
func (m *FreeMap) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *FreeMap) saveLocked() error {
	var buf [device.SectorSize]byte
	binary.LittleEndian.PutUint32(buf[0:], magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(m.count))
	binary.LittleEndian.PutUint32(buf[8:], uint32(m.bitmapStart))
	if err := m.dev.WriteSector(SuperblockSector, buf[:]); err != nil {
		return fmt.Errorf("freemap: write superblock: %w", err)
	}

	for i := device.SectorNum(0); i < m.bitmapLength; i++ {
		off := int(i) * device.SectorSize
		if err := m.dev.WriteSector(m.bitmapStart+i, m.bits[off:off+device.SectorSize]); err != nil {
			return fmt.Errorf("freemap: write bitmap sector %d: %w", i, err)
		}
	}
	return nil
}

// Allocate reserves a contiguous run of count sectors, first fit, and
// returns the first sector of the run.
func (m *FreeMap) Allocate(count int) (device.SectorNum, error) {
	if count <= 0 {
		return 0, fmt.Errorf("freemap: allocation count must be positive, got %d", count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	run := 0
	for s := device.SectorNum(0); s < m.count; s++ {
		if m.isUsed(s) {
			run = 0
			continue
		}
		run++
		if run == count {
			start := s - device.SectorNum(count-1)
			for x := start; x <= s; x++ {
				m.setUsed(x)
			}
			return start, nil
		}
	}
	return 0, fmt.Errorf("freemap: no free run of %d sectors", count)
}

// Release returns a run of sectors to the free pool. Releasing a sector
// that is already free is ignored.
func (m *FreeMap) Release(start device.SectorNum, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < count; i++ {
		s := start + device.SectorNum(i)
		if s < m.count {
			m.setFree(s)
		}
	}
}

// FreeSectors counts the sectors currently free. Used by the shell's stat
// command.
func (m *FreeMap) FreeSectors() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	free := 0
	for s := device.SectorNum(0); s < m.count; s++ {
		if !m.isUsed(s) {
			free++
		}
	}
	return free
}
