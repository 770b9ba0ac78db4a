package fs

import "github.com/psarda/sectorfs/pkg/device"

// RootSector is the fixed, well-known sector holding the root directory's
// inode. It is established at format time and never moves.
const RootSector device.SectorNum = 1

// DirEntry is one visible entry of a directory listing.
type DirEntry struct {
	// Name is the entry name (one path component).
	Name string

	// Sector is the inode number the entry points at.
	Sector device.SectorNum
}

// Allocator tracks free storage and hands out sector runs.
//
// Implemented by pkg/freemap. Allocate and Release must be individually safe
// under concurrent access; this layer performs no locking of its own.
type Allocator interface {
	// Allocate reserves a contiguous run of count sectors and returns the
	// first sector of the run. Fails when no such run exists.
	Allocate(count int) (device.SectorNum, error)

	// Release returns a previously allocated run to the free pool.
	Release(start device.SectorNum, count int)

	// Save persists the free-space state to storage. Called at shutdown.
	Save() error
}

// Inode is an open handle onto one inode (file or directory).
//
// A handle is owned exclusively by its holder and must be closed exactly
// once, on every code path. The inode number is the stable identity used
// across the system.
type Inode interface {
	// Number returns the inode's sector number (its identity).
	Number() device.SectorNum

	// IsDir reports whether the inode describes a directory.
	IsDir() bool

	// Length returns the current data length in bytes.
	Length() int64

	// ReadAt reads len(p) bytes of inode data starting at off.
	// Reads past the end return io.EOF semantics via a short count.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes p at off, growing the inode as needed.
	WriteAt(p []byte, off int64) (int, error)

	// Close releases the handle. Further calls on the handle fail.
	Close() error
}

// InodeService creates, opens, and destroys inodes.
//
// Implemented by pkg/inode.
type InodeService interface {
	// Create initializes a fresh inode at the given sector with size bytes
	// of zeroed data and the given kind. The sector itself must already be
	// allocated by the caller.
	Create(sector device.SectorNum, size int64, isDir bool) error

	// Open returns a handle onto the inode stored at sector.
	Open(sector device.SectorNum) (Inode, error)

	// Remove destroys the inode at sector, releasing its data sectors and
	// the inode sector itself. Open handles elsewhere are not invalidated;
	// there is deliberately no guarantee about their behavior afterwards.
	Remove(sector device.SectorNum) error
}

// Dir is an open handle onto a directory's entry table.
//
// Like Inode, a Dir is owned exclusively and closed exactly once. Closing a
// Dir closes the inode handle it was opened from.
type Dir interface {
	// Lookup finds name among the directory's entries. The boolean reports
	// whether the entry exists; the error reports I/O trouble only. On a
	// hit, the returned inode handle is owned by the caller.
	Lookup(name string) (Inode, bool, error)

	// Add inserts an entry mapping name to the given inode sector.
	// Fails if the name is already present, empty, or too long.
	Add(name string, sector device.SectorNum) error

	// Remove deletes the entry with the given name and destroys the inode
	// it points at.
	Remove(name string) error

	// List returns the directory's entries in storage order.
	List() ([]DirEntry, error)

	// Inode returns the directory's own inode handle. The handle is
	// borrowed: it belongs to the Dir and is closed by Close.
	Inode() Inode

	// Close releases the directory handle and its underlying inode handle.
	Close() error
}

// DirService opens directories.
//
// Implemented by pkg/directory.
type DirService interface {
	// Open interprets the given inode as a directory. On success the
	// returned Dir takes ownership of ino; on failure the caller keeps it.
	Open(ino Inode) (Dir, error)

	// OpenRoot opens the root directory at RootSector.
	OpenRoot() (Dir, error)

	// EntrySize returns the on-disk size of one directory entry in bytes.
	// Used to size a directory's initial entry capacity.
	EntrySize() int
}

// Cache is the buffer cache's lifecycle surface as seen by this layer.
//
// Implemented by pkg/cache. Reads and writes flow through it implicitly via
// the device interface the other collaborators hold.
type Cache interface {
	// Flush writes all dirty sectors back to the device.
	Flush() error

	// Close flushes and tears the cache down.
	Close() error
}
