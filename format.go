// Package ufat formats block devices with a FAT12, FAT16 or FAT32
// filesystem. Geometry is derived from the device block size and block
// count alone; the caller picks nothing.
package ufat

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fabiopolimeni/ufat/block"
)

// Step identifies a phase of the format sequence, for progress reporting.
type Step int

// Format phases, in the order they run.
const (
	StepReserved Step = iota
	StepFAT
	StepRoot
	StepFSInfo
	StepBoot
)

func (s Step) String() string {
	switch s {
	case StepReserved:
		return "reserved"
	case StepFAT:
		return "fat"
	case StepRoot:
		return "root"
	case StepFSInfo:
		return "fsinfo"
	case StepBoot:
		return "boot"
	}
	return "unknown"
}

// Progress observes completed device writes: count blocks landed starting
// at block. It must not block for long and cannot alter the sequence.
type Progress func(step Step, block, count uint64)

// formatter threads the device, the computed layout and the progress
// callback through the writers.
type formatter struct {
	dev    block.Device
	fl     Layout
	notify Progress
}

func (f *formatter) writeBlocks(step Step, start uint64, p []byte) error {
	n := uint64(len(p)) >> f.fl.Log2BlockSize
	if _, err := f.dev.WriteAt(p, int64(start<<f.fl.Log2BlockSize)); err != nil {
		return errors.Wrapf(err, "%s: write %d block(s) at %d", step, n, start)
	}
	if f.notify != nil {
		f.notify(step, start, n)
	}
	return nil
}

// eraseBlocks zero-fills count blocks starting at start, one block at a
// time. The first failed write aborts; partially erased regions are left
// as they are.
func (f *formatter) eraseBlocks(step Step, start, count uint64) error {
	buf := make([]byte, 1<<f.fl.Log2BlockSize)
	for i := uint64(0); i < count; i++ {
		if err := f.writeBlocks(step, start+i, buf); err != nil {
			return err
		}
	}
	return nil
}

// initRootRegion clears the fixed root directory region of a FAT12/16
// volume, leaving it an empty directory.
func (f *formatter) initRootRegion() error {
	start := f.fl.ReservedBlocks + f.fl.FATBlocks*2
	return f.eraseBlocks(StepRoot, start, f.fl.RootBlocks)
}

// initRootCluster clears cluster 2, the FAT32 root directory.
func (f *formatter) initRootCluster() error {
	start := f.fl.ReservedBlocks + f.fl.FATBlocks*2 + f.fl.RootBlocks
	return f.eraseBlocks(StepRoot, start, f.fl.ClusterBlocks())
}

// Format writes a fresh FAT filesystem onto the first nblk blocks of dev.
// It is destructive and performs no validation of existing contents. On
// error the device is left partially formatted; the recovery is to format
// again.
func Format(dev block.Device, nblk uint64) error {
	return FormatProgress(dev, nblk, nil)
}

// FormatProgress is Format with a progress callback. notify may be nil.
func FormatProgress(dev block.Device, nblk uint64, notify Progress) error {
	bs := dev.BlockSize()
	if bs <= 0 || bs&(bs-1) != 0 {
		return ErrBlockSize
	}

	fl, err := CalculateLayout(nblk, uint(bits.TrailingZeros64(uint64(bs))))
	if err != nil {
		return err
	}

	f := &formatter{dev: dev, fl: fl, notify: notify}

	if err := f.eraseBlocks(StepReserved, 0, fl.ReservedBlocks); err != nil {
		return err
	}

	if err := f.initFAT(); err != nil {
		return err
	}

	if fl.Type == FAT32 {
		if err := f.initRootCluster(); err != nil {
			return err
		}
		if err := f.writeFSInfo(); err != nil {
			return err
		}
	} else {
		if err := f.initRootRegion(); err != nil {
			return err
		}
	}

	if err := f.writeBootSector(); err != nil {
		return err
	}

	return errors.Wrap(dev.Flush(), "flush")
}
