package ufat

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Reserved FAT entry values. Entry 0 carries the media descriptor in its
// low byte with every higher bit set; entry 1 is the end-of-chain marker.
// Entries past the final cluster count are marked with the bad-cluster
// value to flag them as beyond the volume. FAT32 entries keep their high
// four bits set in reserved values even though only the low 28 bits
// address clusters.
const (
	fat16Reserved0  = 0xff00 | mediaDisk
	fat16EndOfChain = 0xfff8
	fat16OutOfRange = 0xfff7

	fat32Reserved0  = 0xffffff00 | mediaDisk
	fat32EndOfChain = 0xfffffff8
	fat32OutOfRange = 0xfffffff7

	fat12OutOfRange = 0xff7

	// Packed pair values for FAT12: both entries beyond the volume, and
	// only the upper entry beyond the volume.
	fat12PairOutOfRange      = 0xff7ff7
	fat12PairUpperOutOfRange = 0xff7000
)

// fat12PackPair packs two 12-bit entries into a 3-byte group, returned as
// an integer whose low three bytes are the group in disk order.
func fat12PackPair(lo, hi uint16) uint32 {
	return uint32(lo&0xfff) | uint32(hi&0xfff)<<12
}

// fat12UnpackPair is the inverse of fat12PackPair.
func fat12UnpackPair(pair uint32) (lo, hi uint16) {
	return uint16(pair & 0xfff), uint16(pair >> 12 & 0xfff)
}

// initFAT writes both FAT copies back-to-back after the reserved region,
// in the entry width the layout selected.
func (f *formatter) initFAT() error {
	switch f.fl.Type {
	case FAT12:
		return f.initFAT12()
	case FAT16:
		return f.initFAT16()
	case FAT32:
		return f.initFAT32()
	default:
		return errors.Errorf("unknown FAT type %d", f.fl.Type)
	}
}

// initFAT12 walks the packed table two entries per three bytes. minor
// counts the byte within the current group (0,1,2) and pair counts
// completed entry pairs; both are threaded across block boundaries and
// reset at the start of the second copy.
func (f *formatter) initFAT12() error {
	fl := &f.fl
	blockSize := uint32(1) << fl.Log2BlockSize

	minor := uint(0)
	pair := uint32(0)
	buf := make([]byte, blockSize)

	for i, blk := uint64(0), uint64(0); i < fl.FATBlocks*2; i, blk = i+1, blk+1 {
		if blk == fl.FATBlocks {
			blk = 0
			minor = 0
			pair = 0
		}

		for j := uint32(0); j < blockSize; j++ {
			var pairData uint32
			if pair<<1 >= fl.Clusters {
				pairData = fat12PairOutOfRange
			} else if (pair<<1)+1 >= fl.Clusters {
				pairData = fat12PairUpperOutOfRange
			}

			buf[j] = byte(pairData >> (minor << 3))

			if minor++; minor >= 3 {
				minor = 0
				pair++
			}
		}

		if blk == 0 {
			buf[0] = mediaDisk
			buf[1] = 0x8f
			buf[2] = 0xff
		}

		if err := f.writeBlocks(StepFAT, fl.ReservedBlocks+i, buf); err != nil {
			return err
		}
	}

	return nil
}

func (f *formatter) initFAT16() error {
	fl := &f.fl
	blockSize := uint32(1) << fl.Log2BlockSize

	c := uint32(0)
	buf := make([]byte, blockSize)

	for i, blk := uint64(0), uint64(0); i < fl.FATBlocks*2; i, blk = i+1, blk+1 {
		if blk == fl.FATBlocks {
			blk = 0
			c = 0
		}

		for j := uint32(0); j < blockSize; j += 2 {
			var entry uint16
			if c >= fl.Clusters {
				entry = fat16OutOfRange
			}
			binary.LittleEndian.PutUint16(buf[j:], entry)
			c++
		}

		if blk == 0 {
			binary.LittleEndian.PutUint16(buf[0:], fat16Reserved0)
			binary.LittleEndian.PutUint16(buf[2:], fat16EndOfChain)
		}

		if err := f.writeBlocks(StepFAT, fl.ReservedBlocks+i, buf); err != nil {
			return err
		}
	}

	return nil
}

// initFAT32 additionally terminates cluster 2, the chain holding the
// otherwise empty root directory.
func (f *formatter) initFAT32() error {
	fl := &f.fl
	blockSize := uint32(1) << fl.Log2BlockSize

	c := uint32(0)
	buf := make([]byte, blockSize)

	for i, blk := uint64(0), uint64(0); i < fl.FATBlocks*2; i, blk = i+1, blk+1 {
		if blk == fl.FATBlocks {
			blk = 0
			c = 0
		}

		for j := uint32(0); j < blockSize; j += 4 {
			var entry uint32
			if c >= fl.Clusters {
				entry = fat32OutOfRange
			}
			binary.LittleEndian.PutUint32(buf[j:], entry)
			c++
		}

		if blk == 0 {
			binary.LittleEndian.PutUint32(buf[0:], fat32Reserved0)
			binary.LittleEndian.PutUint32(buf[4:], fat32EndOfChain)
			binary.LittleEndian.PutUint32(buf[8:], fat32EndOfChain)
		}

		if err := f.writeBlocks(StepFAT, fl.ReservedBlocks+i, buf); err != nil {
			return err
		}
	}

	return nil
}
