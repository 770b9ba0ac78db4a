// Package directory implements directory handles over inode data.
//
// A directory's data is a flat table of fixed-size entries, each mapping one
// name to the sector of the inode it points at. Every directory carries a
// "." entry for itself and a ".." entry for its parent; both are added by
// the namespace layer at creation time.
package directory

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/fs"
)

// entrySize is the on-disk size of one directory entry:
// sector(4) + in-use(1) + name length(1) + name bytes(NameMax).
const entrySize = 6 + fs.NameMax

// diskEntry is the in-memory form of one entry slot.
type diskEntry struct {
	sector device.SectorNum
	inUse  bool
	name   string
}

func marshalEntry(e *diskEntry, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(e.sector))
	if e.inUse {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	buf[5] = byte(len(e.name))
	copy(buf[6:6+fs.NameMax], e.name)
}

func unmarshalEntry(buf []byte) diskEntry {
	nameLen := int(buf[5])
	if nameLen > fs.NameMax {
		nameLen = fs.NameMax
	}
	return diskEntry{
		sector: device.SectorNum(binary.LittleEndian.Uint32(buf[0:])),
		inUse:  buf[4] == 1,
		name:   string(buf[6 : 6+nameLen]),
	}
}

// Service implements fs.DirService.
type Service struct {
	inodes fs.InodeService
}

// NewService creates a directory service that destroys removed entries'
// inodes through the given inode service.
func NewService(inodes fs.InodeService) *Service {
	return &Service{inodes: inodes}
}

// EntrySize returns the on-disk size of one directory entry in bytes.
func (s *Service) EntrySize() int { return entrySize }

// Open interprets ino as a directory. On success the returned handle takes
// ownership of ino; on failure the caller keeps it.
func (s *Service) Open(ino fs.Inode) (fs.Dir, error) {
	if ino == nil {
		return nil, fmt.Errorf("directory: nil inode")
	}
	if !ino.IsDir() {
		return nil, fmt.Errorf("directory: inode %d is not a directory", ino.Number())
	}
	return &Dir{svc: s, ino: ino}, nil
}

// OpenRoot opens the root directory at the fixed root sector.
func (s *Service) OpenRoot() (fs.Dir, error) {
	ino, err := s.inodes.Open(fs.RootSector)
	if err != nil {
		return nil, fmt.Errorf("directory: open root inode: %w", err)
	}
	dir, err := s.Open(ino)
	if err != nil {
		ino.Close()
		return nil, err
	}
	return dir, nil
}

// Dir implements fs.Dir over one open directory inode.
//
// Thread Safety:
// A handle-level mutex makes individual operations on one handle safe;
// distinct handles onto the same directory are serialized by the inode
// store underneath, one sector access at a time.
type Dir struct {
	mu     sync.Mutex
	svc    *Service
	ino    fs.Inode
	closed bool
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("directory: empty name")
	}
	if len(name) > fs.NameMax {
		return fmt.Errorf("directory: name %q exceeds %d bytes", name, fs.NameMax)
	}
	if strings.ContainsRune(name, fs.Separator) {
		return fmt.Errorf("directory: name %q contains a separator", name)
	}
	return nil
}

// scan walks the entry table and calls fn for each slot with its byte
// offset. fn returns true to stop the walk.
func (d *Dir) scan(fn func(off int64, e diskEntry) bool) error {
	var buf [entrySize]byte
	length := d.ino.Length()
	for off := int64(0); off+entrySize <= length; off += entrySize {
		if _, err := d.ino.ReadAt(buf[:], off); err != nil && err != io.EOF {
			return err
		}
		if fn(off, unmarshalEntry(buf[:])) {
			return nil
		}
	}
	return nil
}

// Lookup finds name among the entries. The boolean reports presence; the
// error reports I/O trouble only. On a hit the caller owns the returned
// inode handle.
func (d *Dir) Lookup(name string) (fs.Inode, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, fmt.Errorf("directory: lookup on closed handle")
	}
	if err := checkName(name); err != nil {
		return nil, false, nil
	}

	var sector device.SectorNum
	found := false
	err := d.scan(func(off int64, e diskEntry) bool {
		if e.inUse && e.name == name {
			sector = e.sector
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	ino, err := d.svc.inodes.Open(sector)
	if err != nil {
		return nil, false, fmt.Errorf("directory: open entry %q: %w", name, err)
	}
	return ino, true, nil
}

// Add inserts an entry mapping name to sector, reusing a free slot when one
// exists and appending to the table otherwise. Duplicate names are
// rejected; names within one directory are unique.
func (d *Dir) Add(name string, sector device.SectorNum) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("directory: add on closed handle")
	}
	if err := checkName(name); err != nil {
		return err
	}

	freeOff := int64(-1)
	duplicate := false
	err := d.scan(func(off int64, e diskEntry) bool {
		if e.inUse && e.name == name {
			duplicate = true
			return true
		}
		if !e.inUse && freeOff < 0 {
			freeOff = off
		}
		return false
	})
	if err != nil {
		return err
	}
	if duplicate {
		return fmt.Errorf("directory: entry %q already exists", name)
	}
	if freeOff < 0 {
		freeOff = d.ino.Length()
	}

	var buf [entrySize]byte
	marshalEntry(&diskEntry{sector: sector, inUse: true, name: name}, buf[:])
	if _, err := d.ino.WriteAt(buf[:], freeOff); err != nil {
		return fmt.Errorf("directory: write entry %q: %w", name, err)
	}
	return nil
}

// Remove deletes the entry with the given name and destroys the inode it
// points at.
func (d *Dir) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("directory: remove on closed handle")
	}
	if err := checkName(name); err != nil {
		return err
	}

	targetOff := int64(-1)
	var target diskEntry
	err := d.scan(func(off int64, e diskEntry) bool {
		if e.inUse && e.name == name {
			targetOff = off
			target = e
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if targetOff < 0 {
		return fmt.Errorf("directory: entry %q not found", name)
	}

	// Clear the entry first so the name disappears from the namespace
	// before the inode goes away.
	var buf [entrySize]byte
	marshalEntry(&diskEntry{}, buf[:])
	if _, err := d.ino.WriteAt(buf[:], targetOff); err != nil {
		return fmt.Errorf("directory: clear entry %q: %w", name, err)
	}

	if err := d.svc.inodes.Remove(target.sector); err != nil {
		return fmt.Errorf("directory: destroy inode of %q: %w", name, err)
	}
	return nil
}

// List returns the live entries in storage order.
func (d *Dir) List() ([]fs.DirEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("directory: list on closed handle")
	}

	var entries []fs.DirEntry
	err := d.scan(func(off int64, e diskEntry) bool {
		if e.inUse {
			entries = append(entries, fs.DirEntry{Name: e.name, Sector: e.sector})
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Inode returns the directory's own inode handle, borrowed from the Dir.
func (d *Dir) Inode() fs.Inode { return d.ino }

// Close releases the directory handle and the inode handle underneath it.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("directory: handle already closed")
	}
	d.closed = true
	return d.ino.Close()
}
