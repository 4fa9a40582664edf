package ufat

import "github.com/pkg/errors"

var (
	// ErrBlockSize indicates that the device block size exceeds the 4 KiB
	// maximum sector size the format supports, or is not a power of two.
	// Returned before any I/O is attempted.
	ErrBlockSize = errors.New("unsupported device block size")

	// ErrDeviceTooSmall indicates that the device cannot hold even the
	// reserved region, FAT copies, root directory and a single data
	// cluster. Returned before any I/O is attempted.
	ErrDeviceTooSmall = errors.New("device too small for filesystem metadata")
)
