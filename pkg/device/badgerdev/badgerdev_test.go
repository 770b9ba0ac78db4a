package badgerdev_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/device/badgerdev"
)

func open(t *testing.T) *badgerdev.BadgerDevice {
	t.Helper()
	dev, err := badgerdev.Open(badgerdev.Config{SectorCount: 32, InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestOpenRejectsZeroSectors(t *testing.T) {
	_, err := badgerdev.Open(badgerdev.Config{InMemory: true})
	require.Error(t, err)
}

func TestReadWriteRoundTrip(t *testing.T) {
	dev := open(t)

	out := make([]byte, device.SectorSize)
	for i := range out {
		out[i] = byte(i)
	}
	require.NoError(t, dev.WriteSector(5, out))

	in := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(5, in))
	assert.Equal(t, out, in)
}

func TestUnwrittenSectorReadsAsZeroes(t *testing.T) {
	dev := open(t)

	buf := make([]byte, device.SectorSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, dev.ReadSector(9, buf))
	for _, b := range buf {
		require.Zero(t, b, "unwritten sectors must present as zeroed")
	}
}

func TestOverwriteReplacesSector(t *testing.T) {
	dev := open(t)

	first := make([]byte, device.SectorSize)
	first[0] = 1
	second := make([]byte, device.SectorSize)
	second[0] = 2

	require.NoError(t, dev.WriteSector(0, first))
	require.NoError(t, dev.WriteSector(0, second))

	got := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(0, got))
	assert.Equal(t, second, got)
}

func TestOutOfRangeRejected(t *testing.T) {
	dev := open(t)
	buf := make([]byte, device.SectorSize)

	require.Error(t, dev.ReadSector(32, buf))
	require.Error(t, dev.WriteSector(99, buf))
}

func TestBadBufferRejected(t *testing.T) {
	dev := open(t)

	require.Error(t, dev.ReadSector(0, make([]byte, 3)))
	require.Error(t, dev.WriteSector(0, make([]byte, device.SectorSize-1)))
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	dev, err := badgerdev.Open(badgerdev.Config{Path: dir, SectorCount: 32})
	require.NoError(t, err)

	out := make([]byte, device.SectorSize)
	out[7] = 0x42
	require.NoError(t, dev.WriteSector(3, out))
	require.NoError(t, dev.Close())

	dev, err = badgerdev.Open(badgerdev.Config{Path: dir, SectorCount: 32})
	require.NoError(t, err)
	defer dev.Close()

	in := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(3, in))
	assert.Equal(t, out, in)
}
