package fs

import (
	"fmt"

	"github.com/psarda/sectorfs/pkg/device"
)

// fakeWorld is an in-memory collaborator set for exercising the resolver
// and the rollback behavior of the namespace operations without a device
// underneath. It counts open handles so tests can assert that every code
// path releases everything it acquired.
type fakeWorld struct {
	kinds   map[device.SectorNum]bool                         // sector -> isDir
	entries map[device.SectorNum]map[string]device.SectorNum  // dir sector -> name -> sector
	next    device.SectorNum

	liveHandles int
	allocations int
	released    []device.SectorNum

	failAllocate    bool
	failInodeCreate bool
	failAddName     string // Dir.Add fails for this name
}

func newFakeWorld() *fakeWorld {
	w := &fakeWorld{
		kinds:   make(map[device.SectorNum]bool),
		entries: make(map[device.SectorNum]map[string]device.SectorNum),
		next:    100,
	}
	w.kinds[RootSector] = true
	w.entries[RootSector] = map[string]device.SectorNum{
		".":  RootSector,
		"..": RootSector,
	}
	return w
}

// addDir wires a directory named name under parent for test setup.
func (w *fakeWorld) addDir(parent device.SectorNum, name string) device.SectorNum {
	s := w.next
	w.next++
	w.kinds[s] = true
	w.entries[s] = map[string]device.SectorNum{".": s, "..": parent}
	w.entries[parent][name] = s
	return s
}

// addFile wires a file named name under parent for test setup.
func (w *fakeWorld) addFile(parent device.SectorNum, name string) device.SectorNum {
	s := w.next
	w.next++
	w.kinds[s] = false
	w.entries[parent][name] = s
	return s
}

func (w *fakeWorld) filesystem() *FileSystem {
	f, err := New(Options{
		Allocator: (*fakeAlloc)(w),
		Inodes:    (*fakeInodes)(w),
		Dirs:      (*fakeDirs)(w),
		Cache:     fakeCache{},
	})
	if err != nil {
		panic(err)
	}
	return f
}

// fakeAlloc implements Allocator.
type fakeAlloc fakeWorld

func (a *fakeAlloc) Allocate(count int) (device.SectorNum, error) {
	if a.failAllocate {
		return 0, fmt.Errorf("fake: out of sectors")
	}
	s := a.next
	a.next += device.SectorNum(count)
	a.allocations++
	return s, nil
}

func (a *fakeAlloc) Release(start device.SectorNum, count int) {
	for i := 0; i < count; i++ {
		a.released = append(a.released, start+device.SectorNum(i))
	}
}

func (a *fakeAlloc) Save() error { return nil }

// fakeInodes implements InodeService.
type fakeInodes fakeWorld

func (s *fakeInodes) Create(sector device.SectorNum, size int64, isDir bool) error {
	if s.failInodeCreate {
		return fmt.Errorf("fake: inode create failed")
	}
	s.kinds[sector] = isDir
	if isDir {
		s.entries[sector] = make(map[string]device.SectorNum)
	}
	return nil
}

func (s *fakeInodes) Open(sector device.SectorNum) (Inode, error) {
	if _, ok := s.kinds[sector]; !ok {
		return nil, fmt.Errorf("fake: no inode at sector %d", sector)
	}
	s.liveHandles++
	return &fakeInode{world: (*fakeWorld)(s), sector: sector}, nil
}

func (s *fakeInodes) Remove(sector device.SectorNum) error {
	if _, ok := s.kinds[sector]; !ok {
		return fmt.Errorf("fake: no inode at sector %d", sector)
	}
	delete(s.kinds, sector)
	delete(s.entries, sector)
	s.released = append(s.released, sector)
	return nil
}

// fakeInode implements Inode. Data access is not modeled; the namespace
// layer never touches inode bytes directly.
type fakeInode struct {
	world  *fakeWorld
	sector device.SectorNum
	closed bool
}

func (i *fakeInode) Number() device.SectorNum { return i.sector }
func (i *fakeInode) IsDir() bool              { return i.world.kinds[i.sector] }
func (i *fakeInode) Length() int64            { return 0 }

func (i *fakeInode) ReadAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("fake: no data")
}

func (i *fakeInode) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("fake: no data")
}

func (i *fakeInode) Close() error {
	if i.closed {
		return fmt.Errorf("fake: inode %d closed twice", i.sector)
	}
	i.closed = true
	i.world.liveHandles--
	return nil
}

// fakeDirs implements DirService.
type fakeDirs fakeWorld

func (d *fakeDirs) Open(ino Inode) (Dir, error) {
	fi, ok := ino.(*fakeInode)
	if !ok || !fi.IsDir() {
		return nil, fmt.Errorf("fake: not a directory")
	}
	return &fakeDir{world: (*fakeWorld)(d), ino: fi}, nil
}

func (d *fakeDirs) OpenRoot() (Dir, error) {
	ino, err := (*fakeInodes)(d).Open(RootSector)
	if err != nil {
		return nil, err
	}
	return d.Open(ino)
}

func (d *fakeDirs) EntrySize() int { return 20 }

// fakeDir implements Dir.
type fakeDir struct {
	world *fakeWorld
	ino   *fakeInode
}

func (d *fakeDir) Lookup(name string) (Inode, bool, error) {
	target, ok := d.world.entries[d.ino.sector][name]
	if !ok {
		return nil, false, nil
	}
	ino, err := (*fakeInodes)(d.world).Open(target)
	if err != nil {
		return nil, false, err
	}
	return ino, true, nil
}

func (d *fakeDir) Add(name string, sector device.SectorNum) error {
	if name == d.world.failAddName {
		return fmt.Errorf("fake: add %q refused", name)
	}
	m := d.world.entries[d.ino.sector]
	if _, exists := m[name]; exists {
		return fmt.Errorf("fake: duplicate entry %q", name)
	}
	m[name] = sector
	return nil
}

func (d *fakeDir) Remove(name string) error {
	m := d.world.entries[d.ino.sector]
	target, ok := m[name]
	if !ok {
		return fmt.Errorf("fake: no entry %q", name)
	}
	delete(m, name)
	return (*fakeInodes)(d.world).Remove(target)
}

func (d *fakeDir) List() ([]DirEntry, error) {
	var out []DirEntry
	for name, sector := range d.world.entries[d.ino.sector] {
		out = append(out, DirEntry{Name: name, Sector: sector})
	}
	return out, nil
}

func (d *fakeDir) Inode() Inode { return d.ino }

func (d *fakeDir) Close() error { return d.ino.Close() }

// fakeCache implements Cache.
type fakeCache struct{}

func (fakeCache) Flush() error { return nil }
func (fakeCache) Close() error { return nil }
