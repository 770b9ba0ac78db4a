// Package inode implements the on-disk inode subsystem.
//
// Each inode occupies exactly one sector and describes one file or
// directory: its kind, its data length, and the direct sector pointers that
// hold its data. There is no block indirection; an inode's capacity is
// bounded by the number of direct pointers that fit in a sector.
package inode

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/fs"
)

// magic identifies a sector holding a live inode.
const magic = 0x53464e49 // "INFS"

const (
	headerBytes    = 16 // magic(4) + flags(4) + length(8)
	flagDirectory  = 1 << 0
	maxDirect      = (device.SectorSize - headerBytes) / 4
	// MaxLength is the largest data length an inode can describe.
	MaxLength = int64(maxDirect) * device.SectorSize
)

// diskInode is the in-memory form of one on-disk inode sector.
type diskInode struct {
	flags  uint32
	length int64
	direct []device.SectorNum // len = sectorsFor(length)
}

func sectorsFor(length int64) int {
	return int((length + device.SectorSize - 1) / device.SectorSize)
}

func (d *diskInode) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], magic)
	binary.LittleEndian.PutUint32(buf[4:], d.flags)
	binary.LittleEndian.PutUint64(buf[8:], uint64(d.length))
	for i, s := range d.direct {
		binary.LittleEndian.PutUint32(buf[headerBytes+4*i:], uint32(s))
	}
	// Stale pointers past the live set are ignored on read.
}

func unmarshal(buf []byte) (*diskInode, error) {
	if binary.LittleEndian.Uint32(buf[0:]) != magic {
		return nil, fmt.Errorf("inode: bad magic")
	}
	d := &diskInode{
		flags:  binary.LittleEndian.Uint32(buf[4:]),
		length: int64(binary.LittleEndian.Uint64(buf[8:])),
	}
	if d.length < 0 || d.length > MaxLength {
		return nil, fmt.Errorf("inode: corrupt length %d", d.length)
	}
	n := sectorsFor(d.length)
	d.direct = make([]device.SectorNum, n)
	for i := 0; i < n; i++ {
		d.direct[i] = device.SectorNum(binary.LittleEndian.Uint32(buf[headerBytes+4*i:]))
	}
	return d, nil
}

// Store implements fs.InodeService over a block device (normally the buffer
// cache) and an allocator for data sectors.
//
// Thread Safety:
// A single mutex serializes all metadata reads and writes, including those
// issued through open handles. Individual operations are therefore safe
// under concurrent access; compound sequences are the caller's concern.
type Store struct {
	mu    sync.Mutex
	dev   device.BlockDevice
	alloc fs.Allocator
}

// NewStore creates an inode store over dev, drawing data sectors from alloc.
func NewStore(dev device.BlockDevice, alloc fs.Allocator) *Store {
	return &Store{dev: dev, alloc: alloc}
}

// zeroSector writes a zeroed sector. Fresh data sectors always read as
// zeroes, also on devices that recycle sectors.
func (s *Store) zeroSector(n device.SectorNum) error {
	var zero [device.SectorSize]byte
	return s.dev.WriteSector(n, zero[:])
}

func (s *Store) writeInode(sector device.SectorNum, d *diskInode) error {
	var buf [device.SectorSize]byte
	d.marshal(buf[:])
	return s.dev.WriteSector(sector, buf[:])
}

func (s *Store) readInode(sector device.SectorNum) (*diskInode, error) {
	var buf [device.SectorSize]byte
	if err := s.dev.ReadSector(sector, buf[:]); err != nil {
		return nil, err
	}
	return unmarshal(buf[:])
}

// Create initializes a fresh inode at sector with size bytes of zeroed data.
// The data sectors are drawn from the allocator as one contiguous run; on
// any failure everything drawn here is released again.
func (s *Store) Create(sector device.SectorNum, size int64, isDir bool) error {
	if size < 0 || size > MaxLength {
		return fmt.Errorf("inode: size %d out of range (max %d)", size, MaxLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := &diskInode{length: size}
	if isDir {
		d.flags |= flagDirectory
	}

	n := sectorsFor(size)
	if n > 0 {
		start, err := s.alloc.Allocate(n)
		if err != nil {
			return fmt.Errorf("inode: allocate %d data sectors: %w", n, err)
		}
		d.direct = make([]device.SectorNum, n)
		for i := 0; i < n; i++ {
			d.direct[i] = start + device.SectorNum(i)
			if err := s.zeroSector(d.direct[i]); err != nil {
				s.alloc.Release(start, n)
				return fmt.Errorf("inode: zero data sector: %w", err)
			}
		}
	}

	if err := s.writeInode(sector, d); err != nil {
		if n > 0 {
			s.alloc.Release(d.direct[0], n)
		}
		return fmt.Errorf("inode: write inode sector %d: %w", sector, err)
	}
	return nil
}

// Open returns a handle onto the inode at sector.
func (s *Store) Open(sector device.SectorNum) (fs.Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.readInode(sector)
	if err != nil {
		return nil, fmt.Errorf("inode: open sector %d: %w", sector, err)
	}
	return &Inode{store: s, sector: sector, disk: d}, nil
}

// Remove destroys the inode at sector: its data sectors and the inode
// sector itself are released to the allocator and the sector is scrubbed so
// a later Open fails.
//
// Handles already open on the inode are not invalidated; their behavior
// afterwards is deliberately unspecified.
func (s *Store) Remove(sector device.SectorNum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.readInode(sector)
	if err != nil {
		return fmt.Errorf("inode: remove sector %d: %w", sector, err)
	}

	for _, ds := range d.direct {
		s.alloc.Release(ds, 1)
	}
	if err := s.zeroSector(sector); err != nil {
		return fmt.Errorf("inode: scrub sector %d: %w", sector, err)
	}
	s.alloc.Release(sector, 1)
	return nil
}

// Inode implements fs.Inode. All data access goes through the store's mutex.
type Inode struct {
	store  *Store
	sector device.SectorNum
	disk   *diskInode
	closed bool
}

// Number returns the inode's sector number.
func (i *Inode) Number() device.SectorNum { return i.sector }

// IsDir reports whether the inode describes a directory.
func (i *Inode) IsDir() bool { return i.disk.flags&flagDirectory != 0 }

// Length returns the current data length in bytes.
func (i *Inode) Length() int64 {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()
	return i.disk.length
}

// ReadAt reads len(p) bytes of inode data starting at off. A read past the
// end returns the bytes available and io.EOF.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()

	if i.closed {
		return 0, fmt.Errorf("inode: read on closed handle")
	}
	if off < 0 {
		return 0, fmt.Errorf("inode: negative offset %d", off)
	}
	if off >= i.disk.length {
		return 0, io.EOF
	}

	want := int64(len(p))
	if off+want > i.disk.length {
		want = i.disk.length - off
	}

	var buf [device.SectorSize]byte
	read := int64(0)
	for read < want {
		pos := off + read
		idx := int(pos / device.SectorSize)
		inSector := pos % device.SectorSize

		if err := i.store.dev.ReadSector(i.disk.direct[idx], buf[:]); err != nil {
			return int(read), err
		}
		n := copy(p[read:want], buf[inSector:])
		read += int64(n)
	}

	if want < int64(len(p)) {
		return int(read), io.EOF
	}
	return int(read), nil
}

// WriteAt writes p at off, growing the inode sector by sector as needed.
// A write starting past the current end sees the gap as zeroes.
func (i *Inode) WriteAt(p []byte, off int64) (int, error) {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()

	if i.closed {
		return 0, fmt.Errorf("inode: write on closed handle")
	}
	if off < 0 {
		return 0, fmt.Errorf("inode: negative offset %d", off)
	}
	end := off + int64(len(p))
	if end > MaxLength {
		return 0, fmt.Errorf("inode: write past maximum length (%d > %d)", end, MaxLength)
	}

	if err := i.growLocked(end); err != nil {
		return 0, err
	}

	var buf [device.SectorSize]byte
	written := int64(0)
	for written < int64(len(p)) {
		pos := off + written
		idx := int(pos / device.SectorSize)
		inSector := pos % device.SectorSize

		target := i.disk.direct[idx]
		// Partial sector writes read-modify-write; whole sectors are
		// overwritten outright.
		chunk := int64(device.SectorSize) - inSector
		if chunk > int64(len(p))-written {
			chunk = int64(len(p)) - written
		}
		if chunk < device.SectorSize {
			if err := i.store.dev.ReadSector(target, buf[:]); err != nil {
				return int(written), err
			}
		}
		copy(buf[inSector:], p[written:written+chunk])
		if err := i.store.dev.WriteSector(target, buf[:]); err != nil {
			return int(written), err
		}
		written += chunk
	}

	return int(written), nil
}

// growLocked extends the inode to cover newEnd bytes, allocating and zeroing
// any additional sectors and persisting the updated metadata. No-op when the
// inode already covers newEnd. Must be called with the store lock held.
func (i *Inode) growLocked(newEnd int64) error {
	if newEnd <= i.disk.length {
		return nil
	}

	have := len(i.disk.direct)
	need := sectorsFor(newEnd)
	for have < need {
		s, err := i.store.alloc.Allocate(1)
		if err == nil {
			err = i.store.zeroSector(s)
			if err != nil {
				i.store.alloc.Release(s, 1)
			}
		}
		if err != nil {
			// Roll the partial growth back; the inode keeps its old size.
			for _, extra := range i.disk.direct[sectorsFor(i.disk.length):] {
				i.store.alloc.Release(extra, 1)
			}
			i.disk.direct = i.disk.direct[:sectorsFor(i.disk.length)]
			return fmt.Errorf("inode: grow to %d bytes: %w", newEnd, err)
		}
		i.disk.direct = append(i.disk.direct, s)
		have++
	}

	i.disk.length = newEnd
	return i.store.writeInode(i.sector, i.disk)
}

// Close releases the handle.
func (i *Inode) Close() error {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()
	if i.closed {
		return fmt.Errorf("inode: handle already closed")
	}
	i.closed = true
	return nil
}
