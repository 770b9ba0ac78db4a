// Package fs implements the path-resolution and namespace-operation layer of
// the filesystem: turning slash-separated path strings into directory and
// inode handles, and the four namespace-mutating operations built on that
// walk (Create, Open, Remove, ChangeDirectory).
//
// The on-disk inode representation, the directory entry layout, free-space
// tracking and the buffer cache are consumed through the narrow collaborator
// interfaces in interfaces.go and implemented elsewhere (pkg/inode,
// pkg/directory, pkg/freemap, pkg/cache).
//
// Concurrency model: each operation runs to completion synchronously on the
// calling goroutine. This layer performs no cross-call locking of its own and
// relies on the collaborators to make individual lookups, insertions,
// removals and allocations safe under concurrent access. There is no
// compound atomicity across a whole operation: a concurrent create and
// remove of the same name may interleave in either order. That is an
// accepted, documented limitation of this layer.
package fs

import (
	"fmt"

	"github.com/psarda/sectorfs/internal/logger"
	"github.com/psarda/sectorfs/pkg/device"
)

// DefaultRootEntries is the root directory's initial entry capacity used
// when none is configured. Fixed at format time.
const DefaultRootEntries = 16

// Options wires a FileSystem to its collaborators.
type Options struct {
	// Allocator tracks free sectors.
	Allocator Allocator

	// Inodes creates, opens and destroys inodes.
	Inodes InodeService

	// Dirs opens directory handles.
	Dirs DirService

	// Cache is the buffer cache, flushed and torn down at Close.
	Cache Cache

	// RootEntries is the root directory's initial entry capacity.
	// Zero selects DefaultRootEntries.
	RootEntries int
}

// FileSystem is the namespace layer. All operations take a *Session carrying
// the caller's working directory.
type FileSystem struct {
	alloc   Allocator
	inodes  InodeService
	dirs    DirService
	cache   Cache
	rootCap int
}

// New wires a FileSystem from its collaborators. The caller is responsible
// for having initialized them in order (device, inodes, free map, cache) and
// for loading or formatting the free map before the first operation.
func New(opts Options) (*FileSystem, error) {
	if opts.Allocator == nil || opts.Inodes == nil || opts.Dirs == nil || opts.Cache == nil {
		return nil, fmt.Errorf("fs: all collaborators must be provided")
	}
	rootCap := opts.RootEntries
	if rootCap <= 0 {
		rootCap = DefaultRootEntries
	}
	return &FileSystem{
		alloc:   opts.Allocator,
		inodes:  opts.Inodes,
		dirs:    opts.Dirs,
		cache:   opts.Cache,
		rootCap: rootCap,
	}, nil
}

// Format builds an empty root directory at the fixed root sector with the
// configured initial entry capacity, seeded with its "." and ".." entries
// (both referring to the root itself).
//
// The root sector is reserved by the free map at its own format step; it is
// not drawn from the allocator here.
func (f *FileSystem) Format() error {
	logger.Info("formatting file system...")

	size := int64(f.rootCap) * int64(f.dirs.EntrySize())
	if err := f.inodes.Create(RootSector, size, true); err != nil {
		return fmt.Errorf("fs: create root directory: %w", err)
	}

	root, err := f.dirs.OpenRoot()
	if err != nil {
		return fmt.Errorf("fs: open root directory: %w", err)
	}
	defer root.Close()

	if err := root.Add(".", RootSector); err != nil {
		return fmt.Errorf("fs: seed root self entry: %w", err)
	}
	if err := root.Add("..", RootSector); err != nil {
		return fmt.Errorf("fs: seed root parent entry: %w", err)
	}

	logger.Info("formatting file system... done")
	return nil
}

// Close shuts the filesystem down: the free-space state is flushed to
// storage, then the cache is flushed and torn down. The block device itself
// belongs to whoever opened it.
func (f *FileSystem) Close() error {
	if err := f.alloc.Save(); err != nil {
		return fmt.Errorf("fs: save free map: %w", err)
	}
	if err := f.cache.Close(); err != nil {
		return fmt.Errorf("fs: close cache: %w", err)
	}
	return nil
}

// HandleKind distinguishes the two kinds of open handles.
type HandleKind int

const (
	// KindFile is a regular file handle.
	KindFile HandleKind = iota

	// KindDirectory is a directory handle.
	KindDirectory
)

// Handle is the typed result of Open: exactly one of File or Dir is set,
// indicated by Kind. The holder must Close it exactly once.
type Handle struct {
	Kind HandleKind
	File *File
	Dir  Dir
}

// Close releases whichever handle is held.
func (h *Handle) Close() error {
	if h.File != nil {
		return h.File.Close()
	}
	if h.Dir != nil {
		return h.Dir.Close()
	}
	return nil
}

// Create makes a new file or directory at path with the given initial size.
//
// The path must resolve with its last component missing and everything
// before it present. The operation allocates one sector for the new inode,
// initializes it, and, for directories, populates the "." and ".."
// entries before linking the new name into the parent. Every later failure
// rolls back the earlier steps: nothing is left allocated and no partial
// mutation is visible. All handles are released before returning.
func (f *FileSystem) Create(sess *Session, path string, initialSize int64, isDir bool) error {
	res, err := f.resolve(sess, path)
	if err != nil {
		return &OpError{Code: ErrIOFailure, Message: "create: resolve failed", Path: path, Err: err}
	}
	defer res.release()

	switch res.status {
	case statusFound:
		return &OpError{Code: ErrAlreadyExists, Message: "create: name already exists", Path: path}
	case statusInvalid:
		return &OpError{Code: ErrInvalidPath, Message: "create: invalid path", Path: path}
	}

	sector, err := f.alloc.Allocate(1)
	if err != nil {
		return &OpError{Code: ErrAllocationFailure, Message: "create: no free sectors", Path: path, Err: err}
	}

	if err := f.inodes.Create(sector, initialSize, isDir); err != nil {
		f.alloc.Release(sector, 1)
		return &OpError{Code: ErrAllocationFailure, Message: "create: inode initialization failed", Path: path, Err: err}
	}

	if isDir {
		if err := f.seedDirectory(sector, res.parent.Inode().Number()); err != nil {
			f.inodes.Remove(sector)
			return &OpError{Code: ErrAllocationFailure, Message: "create: seeding directory entries failed", Path: path, Err: err}
		}
	}

	if err := res.parent.Add(res.name, sector); err != nil {
		f.inodes.Remove(sector)
		return &OpError{Code: ErrIOFailure, Message: "create: linking into parent failed", Path: path, Err: err}
	}

	logger.Debug("created %q (sector %d, dir=%v, size=%d)", path, sector, isDir, initialSize)
	return nil
}

// seedDirectory opens the freshly created directory inode at sector and adds
// its "." (self) and ".." (parent) entries. Both must succeed or the whole
// create fails; the two entries are never observable one without the other
// because the directory is not yet linked into the namespace.
func (f *FileSystem) seedDirectory(sector, parent device.SectorNum) error {
	ino, err := f.inodes.Open(sector)
	if err != nil {
		return err
	}
	dir, err := f.dirs.Open(ino)
	if err != nil {
		ino.Close()
		return err
	}
	defer dir.Close()

	if err := dir.Add(".", sector); err != nil {
		return err
	}
	return dir.Add("..", parent)
}

// Open resolves path to an existing inode and returns a typed handle:
// a directory handle if the inode is a directory, a file handle otherwise.
// On any other resolution outcome every carried handle is released and a
// typed error reports why.
func (f *FileSystem) Open(sess *Session, path string) (*Handle, error) {
	res, err := f.resolve(sess, path)
	if err != nil {
		return nil, &OpError{Code: ErrIOFailure, Message: "open: resolve failed", Path: path, Err: err}
	}

	if res.status != statusFound {
		code := ErrInvalidPath
		if res.status == statusMissingLast {
			code = ErrNotFound
		}
		res.release()
		return nil, &OpError{Code: code, Message: "open: path did not resolve", Path: path}
	}

	ino := res.takeInode()
	res.release()

	if ino.IsDir() {
		dir, err := f.dirs.Open(ino)
		if err != nil {
			ino.Close()
			return nil, &OpError{Code: ErrIOFailure, Message: "open: directory open failed", Path: path, Err: err}
		}
		return &Handle{Kind: KindDirectory, Dir: dir}, nil
	}
	return &Handle{Kind: KindFile, File: newFile(ino)}, nil
}

// Remove deletes the entry at path from its parent directory.
//
// It refuses to remove the directory the calling session is standing in:
// the resolved inode's number must differ from the session's working
// directory. All handles are released regardless of outcome.
func (f *FileSystem) Remove(sess *Session, path string) error {
	res, err := f.resolve(sess, path)
	if err != nil {
		return &OpError{Code: ErrIOFailure, Message: "remove: resolve failed", Path: path, Err: err}
	}
	defer res.release()

	if res.status != statusFound {
		code := ErrInvalidPath
		if res.status == statusMissingLast {
			code = ErrNotFound
		}
		return &OpError{Code: code, Message: "remove: path did not resolve", Path: path}
	}

	if res.inode.Number() == sess.WorkingDirectory() {
		return &OpError{Code: ErrBusyDirectory, Message: "remove: target is the working directory", Path: path}
	}

	if err := res.parent.Remove(res.name); err != nil {
		return &OpError{Code: ErrIOFailure, Message: "remove: entry removal failed", Path: path, Err: err}
	}

	logger.Debug("removed %q", path)
	return nil
}

// ChangeDirectory resolves path to a directory and makes it the session's
// working directory. Only the inode number is retained; the handle itself is
// released in all cases.
func (f *FileSystem) ChangeDirectory(sess *Session, path string) error {
	res, err := f.resolve(sess, path)
	if err != nil {
		return &OpError{Code: ErrIOFailure, Message: "chdir: resolve failed", Path: path, Err: err}
	}
	defer res.release()

	if res.status != statusFound {
		code := ErrInvalidPath
		if res.status == statusMissingLast {
			code = ErrNotFound
		}
		return &OpError{Code: code, Message: "chdir: path did not resolve", Path: path}
	}

	if !res.inode.IsDir() {
		return &OpError{Code: ErrNotADirectory, Message: "chdir: target is not a directory", Path: path}
	}

	sess.setWorkingDirectory(res.inode.Number())
	logger.Debug("working directory now sector %d", sess.WorkingDirectory())
	return nil
}
