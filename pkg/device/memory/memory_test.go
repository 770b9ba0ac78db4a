package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psarda/sectorfs/pkg/device"
	"github.com/psarda/sectorfs/pkg/device/memory"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dev := memory.New(8)

	out := make([]byte, device.SectorSize)
	for i := range out {
		out[i] = byte(i % 251)
	}
	require.NoError(t, dev.WriteSector(3, out))

	in := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(3, in))
	assert.Equal(t, out, in)
}

func TestFreshSectorsReadAsZeroes(t *testing.T) {
	dev := memory.New(8)

	buf := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(7, buf))
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestSectorCount(t *testing.T) {
	assert.Equal(t, device.SectorNum(8), memory.New(8).SectorCount())
}

func TestOutOfRangeRejected(t *testing.T) {
	dev := memory.New(8)
	buf := make([]byte, device.SectorSize)

	require.Error(t, dev.ReadSector(8, buf))
	require.Error(t, dev.WriteSector(100, buf))
}

func TestBadBufferRejected(t *testing.T) {
	dev := memory.New(8)

	require.Error(t, dev.ReadSector(0, make([]byte, 10)))
	require.Error(t, dev.WriteSector(0, nil))
}

func TestClosedDeviceRejectsAccess(t *testing.T) {
	dev := memory.New(8)
	require.NoError(t, dev.Close())

	buf := make([]byte, device.SectorSize)
	require.Error(t, dev.ReadSector(0, buf))
	require.Error(t, dev.WriteSector(0, buf))
	require.Error(t, dev.Close())
}
