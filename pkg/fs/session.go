package fs

import "github.com/psarda/sectorfs/pkg/device"

// Session carries per-caller state across namespace operations, most
// importantly the working directory that relative paths resolve against.
//
// A Session belongs to one goroutine (or one logical thread of control).
// Every operation reads the working directory; only a successful
// ChangeDirectory on that same session writes it. Sessions are not safe to
// share between goroutines and deliberately carry no lock.
type Session struct {
	wd device.SectorNum
}

// NewSession returns a session whose working directory is the root.
func (f *FileSystem) NewSession() *Session {
	return &Session{wd: RootSector}
}

// WorkingDirectory returns the inode number of the session's current working
// directory.
func (s *Session) WorkingDirectory() device.SectorNum {
	return s.wd
}

// setWorkingDirectory records a new working directory. Called only by a
// successful ChangeDirectory.
func (s *Session) setWorkingDirectory(n device.SectorNum) {
	s.wd = n
}
