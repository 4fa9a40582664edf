// Package fake provides an in-memory implementation of block.Device.
package fake

import (
	"github.com/pkg/errors"
)

var (
	// ErrBlockSize indicates that one of the provided arguments is not a
	// multiple of the device block size.
	ErrBlockSize = errors.New("argument is not a multiple of blocksize")

	// ErrOutOfBounds indicates that the requested range for a ReadAt or
	// WriteAt call is out of bounds.
	ErrOutOfBounds = errors.New("range is out of bounds")
)

// Device implements block.Device using a byte slice.
type Device struct {
	data      []byte
	blockSize int64

	// WriteErr, when non-nil, is returned by every WriteAt call whose
	// range covers the block index FailBlock. Tests use it to simulate a
	// failing medium.
	WriteErr  error
	FailBlock int64
}

// New returns a zero-filled Device holding blocks blocks of blockSize
// bytes each. blockSize must be a power of two.
func New(blocks, blockSize int64) *Device {
	return &Device{
		data:      make([]byte, blocks*blockSize),
		blockSize: blockSize,
	}
}

func (d *Device) check(p []byte, off int64) error {
	if off%d.blockSize != 0 {
		return errors.Wrap(ErrBlockSize, "off")
	}

	if int64(len(p))%d.blockSize != 0 {
		return errors.Wrap(ErrBlockSize, "len(p)")
	}

	if off < 0 || off+int64(len(p)) > d.Size() {
		return errors.Wrapf(ErrOutOfBounds, "[%v, %v)", off, off+int64(len(p)))
	}

	return nil
}

// Bytes returns the device contents. The slice aliases the device's
// backing store.
func (d *Device) Bytes() []byte {
	return d.data
}

// BlockSize implements block.Device.BlockSize for Device.
func (d *Device) BlockSize() int64 {
	return d.blockSize
}

// Size implements block.Device.Size for Device.
func (d *Device) Size() int64 {
	return int64(len(d.data))
}

// ReadAt implements block.Device.ReadAt for Device.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if err := d.check(p, off); err != nil {
		return 0, err
	}

	return copy(p, d.data[off:]), nil
}

// WriteAt implements block.Device.WriteAt for Device.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if err := d.check(p, off); err != nil {
		return 0, err
	}

	if d.WriteErr != nil {
		first := off / d.blockSize
		last := (off + int64(len(p))) / d.blockSize
		if first <= d.FailBlock && d.FailBlock < last {
			return 0, d.WriteErr
		}
	}

	return copy(d.data[off:], p), nil
}

// Flush implements block.Device.Flush for Device.
func (*Device) Flush() error {
	return nil
}

// Close implements block.Device.Close for Device.
func (*Device) Close() error {
	return nil
}
