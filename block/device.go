// Package block defines the interface that block-addressable devices
// present to the formatter.
package block

// Device is a fixed-geometry block device. Offsets and lengths passed to
// ReadAt and WriteAt must be multiples of BlockSize.
type Device interface {
	// BlockSize returns the size in bytes of the smallest block that the
	// device can read or write at once. It is a power of two and does not
	// change over the life of the device.
	BlockSize() int64

	// Size returns the fixed size of the device in bytes.
	Size() int64

	// ReadAt reads len(p) bytes from the device starting at offset off.
	// Both off and len(p) must be multiples of BlockSize. ReadAt always
	// returns a non-nil error when n < len(p).
	ReadAt(p []byte, off int64) (n int, err error)

	// WriteAt writes the contents of p to the device starting at offset
	// off. Both off and len(p) must be multiples of BlockSize. WriteAt
	// always returns a non-nil error when n < len(p).
	WriteAt(p []byte, off int64) (n int, err error)

	// Flush commits any writes cached in memory to stable storage. It does
	// not return until data from previous WriteAt calls has landed.
	Flush() error

	// Close flushes and then closes the device, rendering it unusable for
	// further I/O.
	Close() error
}
