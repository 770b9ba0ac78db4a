package inode_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/device/memory"
	"github.com/psarda/sectorfs/pkg/freemap"
	"github.com/psarda/sectorfs/pkg/inode"
)

// newStore builds an inode store over a formatted 128-sector memory device.
func newStore(t *testing.T) (*inode.Store, *freemap.FreeMap) {
	t.Helper()
	dev := memory.New(128)
	fm, err := freemap.New(dev)
	require.NoError(t, err)
	require.NoError(t, fm.Format())
	return inode.NewStore(dev, fm), fm
}

// create allocates a sector and initializes an inode there.
func create(t *testing.T, s *inode.Store, fm *freemap.FreeMap, size int64, isDir bool) device.SectorNum {
	t.Helper()
	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, s.Create(sector, size, isDir))
	return sector
}

func TestCreateOpenRoundTrip(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 100, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	assert.Equal(t, sector, ino.Number())
	assert.False(t, ino.IsDir())
	assert.Equal(t, int64(100), ino.Length())
}

func TestCreateDirectoryFlag(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 0, true)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	assert.True(t, ino.IsDir())
	assert.Zero(t, ino.Length())
}

func TestCreateRejectsOutOfRangeSize(t *testing.T) {
	s, fm := newStore(t)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)

	require.Error(t, s.Create(sector, -1, false))
	require.Error(t, s.Create(sector, inode.MaxLength+1, false))
}

func TestOpenUnformattedSectorFails(t *testing.T) {
	s, fm := newStore(t)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)

	_, err = s.Open(sector)
	require.Error(t, err)
}

func TestFreshDataReadsAsZeroes(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 3*device.SectorSize, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	buf := make([]byte, 3*device.SectorSize)
	n, err := ino.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 0, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	// Crosses a sector boundary and leaves the write unaligned on both ends.
	payload := []byte(strings.Repeat("abcdefgh", 100))
	off := int64(300)

	n, err := ino.WriteAt(payload, off)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, off+int64(len(payload)), ino.Length())

	got := make([]byte, len(payload))
	n, err = ino.ReadAt(got, off)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, payload, got)

	// The gap before the write reads as zeroes.
	gap := make([]byte, off)
	_, err = ino.ReadAt(gap, 0)
	require.NoError(t, err)
	for _, b := range gap {
		require.Zero(t, b)
	}
}

func TestReadPastEnd(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 10, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	// Starting past the end yields no bytes.
	buf := make([]byte, 4)
	n, err := ino.ReadAt(buf, 10)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	// Straddling the end yields the available bytes and EOF.
	buf = make([]byte, 8)
	n, err = ino.ReadAt(buf, 6)
	assert.Equal(t, 4, n)
	assert.Equal(t, io.EOF, err)
}

func TestWritePastMaximumLength(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 0, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	_, err = ino.WriteAt([]byte("x"), inode.MaxLength)
	require.Error(t, err)
	assert.Zero(t, ino.Length(), "a rejected write must not grow the inode")
}

func TestGrowFailureKeepsOldLength(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, device.SectorSize, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)
	defer ino.Close()

	// Drain the free map so growth cannot allocate.
	free := fm.FreeSectors()
	_, err = fm.Allocate(free)
	require.NoError(t, err)

	_, err = ino.WriteAt([]byte("spill"), 3*device.SectorSize)
	require.Error(t, err)
	assert.Equal(t, int64(device.SectorSize), ino.Length())
	assert.Zero(t, fm.FreeSectors(), "failed growth must not leak sectors")
}

func TestRemoveReleasesEverything(t *testing.T) {
	s, fm := newStore(t)

	before := fm.FreeSectors()
	sector := create(t, s, fm, 5*device.SectorSize, false)
	require.Less(t, fm.FreeSectors(), before)

	require.NoError(t, s.Remove(sector))
	assert.Equal(t, before, fm.FreeSectors())

	// The scrubbed sector no longer opens as an inode.
	_, err := s.Open(sector)
	require.Error(t, err)
}

func TestCloseTwiceFails(t *testing.T) {
	s, fm := newStore(t)

	sector := create(t, s, fm, 0, false)
	ino, err := s.Open(sector)
	require.NoError(t, err)

	require.NoError(t, ino.Close())
	require.Error(t, ino.Close())

	_, err = ino.ReadAt(make([]byte, 1), 0)
	require.Error(t, err)
}
