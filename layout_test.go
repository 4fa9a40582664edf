package ufat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeThresholds(t *testing.T) {
	// The FAT type is selected from the total logical sector count alone.
	cases := []struct {
		nblk uint64
		want Type
	}{
		{8399, FAT12},
		{8400, FAT16},
		{1048575, FAT16},
		{1048576, FAT32},
	}

	for _, c := range cases {
		fl, err := CalculateLayout(c.nblk, 9)
		require.NoError(t, err, "nblk=%d", c.nblk)
		require.Equal(t, c.want, fl.Type, "nblk=%d", c.nblk)
	}
}

func TestLayoutFAT12(t *testing.T) {
	// 8000 blocks of 512 B: a ~4 MB volume.
	fl, err := CalculateLayout(8000, 9)
	require.NoError(t, err)

	require.Equal(t, FAT12, fl.Type)
	require.Equal(t, uint32(512), fl.SectorSize())
	require.Equal(t, uint32(2), fl.SectorsPerCluster())
	require.Equal(t, uint32(1), fl.ReservedSectors())
	require.Equal(t, uint32(12), fl.FATSectors())
	require.Equal(t, uint32(3973), fl.Clusters)

	// The root directory grows from the 16 KiB minimum (32 sectors) to
	// absorb the sector left over after fitting whole clusters.
	require.Equal(t, uint64(33), fl.RootBlocks)
	require.Equal(t, uint32(528), fl.RootEntries())

	// FAT12/16 volumes consume the device exactly.
	require.Equal(t, uint64(8000), fl.LogicalBlocks)
}

func TestLayoutFAT32(t *testing.T) {
	// 2,000,000 blocks of 512 B: a ~1 GB volume.
	fl, err := CalculateLayout(2000000, 9)
	require.NoError(t, err)

	require.Equal(t, FAT32, fl.Type)
	require.Equal(t, uint32(8), fl.SectorsPerCluster())
	require.Equal(t, uint32(32), fl.ReservedSectors())
	require.Equal(t, uint32(1954), fl.FATSectors())
	require.Equal(t, uint32(249509), fl.Clusters)

	// No fixed root region; the root is cluster 2.
	require.Equal(t, uint64(0), fl.RootBlocks)
	require.Equal(t, uint32(0), fl.RootEntries())

	// FAT32 shrinks the formatted region to whole clusters; the trailing
	// blocks are simply never touched.
	require.Equal(t, uint64(1999996), fl.LogicalBlocks)
}

func TestLayoutSubSectorBlocks(t *testing.T) {
	// 256 B blocks force two blocks per 512 B logical sector. Every
	// region must stay sector-aligned so the BPB can express it.
	fl, err := CalculateLayout(16384, 8)
	require.NoError(t, err)

	require.Equal(t, FAT12, fl.Type)
	require.Equal(t, uint(9), fl.Log2SectorSize)
	require.Equal(t, uint32(512), fl.SectorSize())
	require.Equal(t, uint32(1), fl.ReservedSectors())
	require.Equal(t, uint64(2), fl.ReservedBlocks)
	require.Equal(t, uint32(13), fl.FATSectors())
	require.Equal(t, uint64(26), fl.FATBlocks)
	require.Equal(t, uint32(4068), fl.Clusters)
	require.Equal(t, uint64(66), fl.RootBlocks)
	require.Equal(t, uint32(528), fl.RootEntries())
	require.Equal(t, uint64(16384), fl.LogicalBlocks)
}

func TestLayoutProperties(t *testing.T) {
	// Structural invariants that must hold for any valid input.
	sizes := []struct {
		nblk          uint64
		log2BlockSize uint
	}{
		{720, 9},
		{2880, 9},
		{8000, 9},
		{8400, 9},
		{65536, 9},
		{100000, 9},
		{1048576, 9},
		{2000000, 9},
		{1 << 24, 9},
		{16384, 8},
		{12345, 10},
		{400000, 12},
	}

	for _, s := range sizes {
		fl, err := CalculateLayout(s.nblk, s.log2BlockSize)
		require.NoError(t, err, "nblk=%d log2bs=%d", s.nblk, s.log2BlockSize)

		// The formatted region never exceeds the request and its parts
		// sum exactly.
		require.LessOrEqual(t, fl.LogicalBlocks, s.nblk)
		sum := fl.ReservedBlocks + 2*fl.FATBlocks + fl.RootBlocks +
			uint64(fl.Clusters-2)*fl.ClusterBlocks()
		require.Equal(t, fl.LogicalBlocks, sum)

		// One FAT copy must hold an entry for every cluster number. This
		// is the guarantee that sizing the FAT from the estimated count
		// never under-allocates for the final count.
		fatBytes := 2 * fl.FATBlocks << fl.Log2BlockSize
		var needed uint64
		switch fl.Type {
		case FAT32:
			needed = uint64(fl.Clusters) * 4 * 2
		case FAT16:
			needed = uint64(fl.Clusters) * 2 * 2
		default:
			needed = uint64(fl.Clusters*3+1) / 2 * 2
		}
		require.GreaterOrEqual(t, fatBytes, needed, "nblk=%d", s.nblk)

		// FAT12/16 fold leftovers into the root directory, so those
		// volumes consume the device to the last whole sector.
		if fl.Type != FAT32 {
			blocksPerSector := uint64(1) << (fl.Log2SectorSize - fl.Log2BlockSize)
			require.Equal(t, s.nblk/blocksPerSector*blocksPerSector, fl.LogicalBlocks)
			require.GreaterOrEqual(t, fl.RootBlocks<<fl.Log2BlockSize, uint64(16384))
		}
	}
}

func TestLayoutSectorGrowth(t *testing.T) {
	// 2^33 blocks of 512 B cannot be counted in 32 bits of 512 B
	// sectors; the sector grows until the count fits.
	fl, err := CalculateLayout(1<<33, 9)
	require.NoError(t, err)
	require.Equal(t, uint(11), fl.Log2SectorSize)
	require.Equal(t, uint32(1<<31), fl.TotalSectors())
	require.LessOrEqual(t, fl.LogicalBlocks, uint64(1)<<33)
}

func TestLayoutTruncation(t *testing.T) {
	// At the 4 KiB sector ceiling there is no room to grow; the device
	// is chopped to the largest representable sector count instead.
	fl, err := CalculateLayout(1<<33, 12)
	require.NoError(t, err)
	require.Equal(t, uint(12), fl.Log2SectorSize)
	require.LessOrEqual(t, fl.LogicalBlocks, uint64(1)<<32)
	require.Equal(t, FAT32, fl.Type)
}

func TestLayoutBlockSizeError(t *testing.T) {
	_, err := CalculateLayout(8000, 13)
	require.ErrorIs(t, err, ErrBlockSize)
}

func TestLayoutDeviceTooSmall(t *testing.T) {
	for _, nblk := range []uint64{1, 2, 30, 36} {
		_, err := CalculateLayout(nblk, 9)
		require.ErrorIs(t, err, ErrDeviceTooSmall, "nblk=%d", nblk)
	}

	// The smallest formattable FAT12 volume: 1 reserved + 2 FAT + 32
	// root sectors + one 2-sector cluster.
	fl, err := CalculateLayout(37, 9)
	require.NoError(t, err)
	require.Equal(t, uint32(3), fl.Clusters)
}
