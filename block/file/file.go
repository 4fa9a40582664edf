// Package file implements the block.Device interface backed by a regular
// file or a raw block device node.
package file

import (
	"os"

	"github.com/pkg/errors"
)

const defaultBlockSize int64 = 512

// File represents a block device backed by an *os.File.
type File struct {
	f         *os.File
	size      int64
	blocksize int64
}

// New creates a File using f as the backing store. For regular files the
// device size is the file size; for block device nodes it is queried from
// the kernel. New does not close f on error.
func New(f *os.File) (*File, error) {
	return NewSize(f, defaultBlockSize)
}

// NewSize is New with an explicit block size. blockSize must be a power
// of two.
func NewSize(f *os.File, blockSize int64) (*File, error) {
	if blockSize <= 0 || blockSize&(blockSize-1) != 0 {
		return nil, errors.Errorf("block size %d is not a power of two", blockSize)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", f.Name())
	}

	size := info.Size()
	if info.Mode()&os.ModeDevice != 0 {
		size, err = ioctlBlockGetSize(f.Fd())
		if err != nil {
			return nil, errors.Wrapf(err, "device size of %s", f.Name())
		}
	}

	return &File{f: f, size: size, blocksize: blockSize}, nil
}

// SectorSize reports the native sector size of the underlying device, or
// an error when the backing store does not expose one.
func (f *File) SectorSize() (int64, error) {
	return ioctlBlockGetSectorSize(f.f.Fd())
}

// BlockSize implements block.Device.BlockSize for File.
func (f *File) BlockSize() int64 {
	return f.blocksize
}

// Size implements block.Device.Size for File.
func (f *File) Size() int64 {
	return f.size
}

func (f *File) check(p []byte, off int64, op string) error {
	if off%f.blocksize != 0 {
		return errors.Errorf("%s %s: off (%v) is not a multiple of blocksize", op, f.f.Name(), off)
	}

	if int64(len(p))%f.blocksize != 0 {
		return errors.Errorf("%s %s: len(p) (%v) is not a multiple of blocksize", op, f.f.Name(), len(p))
	}

	if off < 0 || off+int64(len(p)) > f.size {
		return errors.Errorf("%s %s: range [%v, %v) is out of bounds", op, f.f.Name(), off, off+int64(len(p)))
	}

	return nil
}

// ReadAt implements block.Device.ReadAt for File.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.check(p, off, "ReadAt"); err != nil {
		return 0, err
	}

	return f.f.ReadAt(p, off)
}

// WriteAt implements block.Device.WriteAt for File.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if err := f.check(p, off, "WriteAt"); err != nil {
		return 0, err
	}

	return f.f.WriteAt(p, off)
}

// Flush implements block.Device.Flush for File.
func (f *File) Flush() error {
	return f.f.Sync()
}

// Close implements block.Device.Close for File.
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}
