package fs

import (
	"fmt"
	"io"

	"github.com/psarda/sectorfs/pkg/device"
)

// File is a positioned reader/writer over a regular file's inode.
//
// A File owns its inode handle; Close releases it. Files are owned by one
// caller and are not safe for concurrent use.
type File struct {
	ino    Inode
	pos    int64
	closed bool
}

// newFile wraps an open inode handle. Ownership of ino passes to the File.
func newFile(ino Inode) *File {
	return &File{ino: ino}
}

// Read reads up to len(p) bytes from the current position.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fs: read on closed file")
	}
	if f.pos >= f.ino.Length() {
		return 0, io.EOF
	}
	n, err := f.ino.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write writes p at the current position, growing the file as needed.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fs: write on closed file")
	}
	n, err := f.ino.WriteAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek sets the position, interpreted per io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fmt.Errorf("fs: seek on closed file")
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = f.ino.Length() + offset
	default:
		return 0, fmt.Errorf("fs: invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("fs: negative seek position %d", pos)
	}
	f.pos = pos
	return pos, nil
}

// Size returns the current file length in bytes.
func (f *File) Size() int64 { return f.ino.Length() }

// Sector returns the file's inode number.
func (f *File) Sector() device.SectorNum { return f.ino.Number() }

// Close releases the file's inode handle.
func (f *File) Close() error {
	if f.closed {
		return fmt.Errorf("fs: file already closed")
	}
	f.closed = true
	return f.ino.Close()
}
