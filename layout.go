package ufat

import "math"

// Type identifies the FAT variant selected for a volume. It is chosen once
// by CalculateLayout and threaded through every writer.
type Type int

// FAT variants, by entry width in bits.
const (
	FAT12 Type = 12
	FAT16 Type = 16
	FAT32 Type = 32
)

func (t Type) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	}
	return "FAT?"
}

const (
	// Sector size bounds. FAT sectors are 512 B to 4 KiB.
	minLog2SectorSize = 9
	maxLog2SectorSize = 12

	// Clusters may not exceed 32 KiB.
	maxLog2ClusterSize = 15

	rootDirBytes = 16384
	mediaDisk    = 0xf8
)

// Layout is the complete derived geometry for one format operation. It is
// computed once, never mutated, and consumed by the writers. All region
// sizes are whole multiples of the logical sector, so every value has an
// exact BPB representation.
type Layout struct {
	Type Type

	// Log2BlockSize is the device block size the layout was derived for.
	Log2BlockSize uint

	// Log2SectorSize is the logical sector size. Sectors are at least as
	// large as blocks, so Log2SectorSize >= Log2BlockSize.
	Log2SectorSize uint

	// Log2BlocksPerCluster is the cluster size in device blocks.
	Log2BlocksPerCluster uint

	// Region sizes, in device blocks. RootBlocks is zero for FAT32, where
	// the root directory lives in cluster 2 like any other data.
	ReservedBlocks uint64
	RootBlocks     uint64
	FATBlocks      uint64

	// LogicalBlocks is the exact block count the volume occupies:
	// reserved + 2*FAT + root + (Clusters-2) whole clusters. It never
	// exceeds the block count requested from CalculateLayout.
	LogicalBlocks uint64

	// Clusters counts addressable data clusters plus the two reserved
	// entry numbers 0 and 1.
	Clusters uint32
}

// log2BlocksPerSector is how many device blocks one logical sector spans.
func (fl *Layout) log2BlocksPerSector() uint {
	return fl.Log2SectorSize - fl.Log2BlockSize
}

// SectorSize returns the logical sector size in bytes.
func (fl *Layout) SectorSize() uint32 {
	return 1 << fl.Log2SectorSize
}

// SectorsPerCluster returns the cluster size in logical sectors.
func (fl *Layout) SectorsPerCluster() uint32 {
	return 1 << (fl.Log2BlocksPerCluster - fl.log2BlocksPerSector())
}

// ClusterBlocks returns the cluster size in device blocks.
func (fl *Layout) ClusterBlocks() uint64 {
	return 1 << fl.Log2BlocksPerCluster
}

// ReservedSectors returns the reserved region size in logical sectors.
func (fl *Layout) ReservedSectors() uint32 {
	return uint32(fl.ReservedBlocks >> fl.log2BlocksPerSector())
}

// FATSectors returns the size of one FAT copy in logical sectors.
func (fl *Layout) FATSectors() uint32 {
	return uint32(fl.FATBlocks >> fl.log2BlocksPerSector())
}

// TotalSectors returns the formatted volume size in logical sectors.
func (fl *Layout) TotalSectors() uint32 {
	return uint32(fl.LogicalBlocks >> fl.log2BlocksPerSector())
}

// RootEntries returns the number of 32-byte directory entries the fixed
// root directory region holds. Zero for FAT32.
func (fl *Layout) RootEntries() uint32 {
	return uint32(fl.RootBlocks << (fl.Log2BlockSize - 5))
}

func bytesToSectors(log2SectorSize uint, bytes uint32) uint32 {
	return (bytes + (1 << log2SectorSize) - 1) >> log2SectorSize
}

// CalculateLayout derives the on-disk geometry for a device of nblk blocks
// of 1<<log2BlockSize bytes each. It performs no I/O.
//
// The FAT type is picked from the total logical sector count using the
// thresholds from the canonical FAT sizing guidance ("FAT Volume
// Initialization", fatgen103): below 8400 sectors FAT12, below 1048576
// FAT16, FAT32 otherwise. For a typical 512 B block size this selects
// FAT12 below ~4.1 MB and FAT16 below 512 MB.
//
// Devices whose sector count cannot be represented in the 32-bit on-disk
// fields are handled by growing the sector size up to 4 KiB and, failing
// that, by truncating the formatted region; trailing blocks beyond it are
// never touched.
func CalculateLayout(nblk uint64, log2BlockSize uint) (Layout, error) {
	var fl Layout

	if log2BlockSize > maxLog2SectorSize {
		return fl, ErrBlockSize
	}

	// Minimum sector size is 512 B, but a sector cannot be smaller than a
	// block.
	var log2bps uint
	if log2BlockSize < minLog2SectorSize {
		log2bps = minLog2SectorSize - log2BlockSize
	}

	// Grow the sector until the logical sector count fits in 32 bits.
	for log2BlockSize+log2bps < maxLog2SectorSize && nblk>>log2bps > math.MaxUint32 {
		log2bps++
	}

	// If it still does not fit, chop the device.
	if nblk>>log2bps > math.MaxUint32 {
		nblk = math.MaxUint32 << log2bps
	}

	fl.Log2BlockSize = log2BlockSize
	fl.Log2SectorSize = log2BlockSize + log2bps

	nsect := uint32(nblk >> log2bps)

	var clustersThreshold uint32
	var log2spc uint
	switch {
	case nsect < 8400:
		fl.Type = FAT12
		clustersThreshold = 1 << 12
		log2spc = 1
	case nsect < 1048576:
		fl.Type = FAT16
		clustersThreshold = 1 << 16
		log2spc = 1
	default:
		fl.Type = FAT32
		clustersThreshold = 2097152
		log2spc = 3
	}

	// Grow the cluster while the projected cluster count would exceed the
	// type's ceiling, keeping clusters below 32 KiB.
	for log2spc < 7 &&
		fl.Log2SectorSize+log2spc < maxLog2ClusterSize &&
		nsect>>log2spc > clustersThreshold {
		log2spc++
	}

	fl.Log2BlocksPerCluster = log2bps + log2spc

	// FAT12/16 reserve a single sector; FAT32 conventionally reserves 32.
	reservedSectors := uint32(1)
	if fl.Type == FAT32 {
		reservedSectors = 32
	}

	if nsect <= reservedSectors {
		return fl, ErrDeviceTooSmall
	}

	// Upper bound on the cluster count, used to size the FAT. The final
	// count below can only shrink once root and FAT overhead is taken
	// out, so a FAT sized here always has enough entries.
	estClusters := (nsect-reservedSectors)>>log2spc + 2

	var fatBytes uint32
	switch fl.Type {
	case FAT32:
		fatBytes = estClusters << 2
	case FAT16:
		fatBytes = estClusters << 1
	default:
		fatBytes = (estClusters*3 + 1) >> 1
	}

	fatSectors := bytesToSectors(fl.Log2SectorSize, fatBytes)

	// FAT12/16 hold the root directory in a fixed region of at least
	// 16 KiB. The FAT32 root is an ordinary cluster chain.
	var rootSectors uint32
	if fl.Type != FAT32 {
		rootSectors = bytesToSectors(fl.Log2SectorSize, rootDirBytes)
	}

	overhead := uint64(reservedSectors) + uint64(rootSectors) + 2*uint64(fatSectors)
	if uint64(nsect) < overhead+(1<<log2spc) {
		return fl, ErrDeviceTooSmall
	}

	fl.Clusters = uint32((uint64(nsect)-overhead)>>log2spc) + 2

	// Expand the root directory to absorb sectors left over after fitting
	// whole clusters, so FAT12/16 volumes use the device to the sector.
	if fl.Type != FAT32 {
		rootSectors = nsect - reservedSectors - 2*fatSectors -
			(fl.Clusters-2)<<log2spc
	}

	totalSectors := (fl.Clusters-2)<<log2spc + 2*fatSectors +
		reservedSectors + rootSectors

	fl.ReservedBlocks = uint64(reservedSectors) << log2bps
	fl.RootBlocks = uint64(rootSectors) << log2bps
	fl.FATBlocks = uint64(fatSectors) << log2bps
	fl.LogicalBlocks = uint64(totalSectors) << log2bps

	return fl, nil
}
