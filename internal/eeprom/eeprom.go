// Package eeprom provides a fixed-size, byte-addressable non-volatile
// region with explicit commit, the way flash-emulated EEPROM behaves:
// writes land in a RAM cache and only Commit makes them durable.
// The real implementation is backed by an image file.
// The memory implementation allows testing power loss without hardware.
package eeprom

import (
	"errors"
	"fmt"
)

// DefaultSize is the region size in bytes.
const DefaultSize = 512

// erased is the value of never-written cells.
const erased = 0xFF

// ErrOutOfRange is returned for accesses beyond the region.
var ErrOutOfRange = errors.New("eeprom: access out of range")

// Device is a byte-addressable non-volatile region.
type Device interface {
	// Size returns the region size in bytes.
	Size() int

	// ReadAt fills p from offset off of the cached region.
	ReadAt(p []byte, off int) error

	// WriteAt copies p into the cache at offset off. Not durable until Commit.
	WriteAt(p []byte, off int) error

	// Commit flushes the cache to the non-volatile medium.
	Commit() error

	// Close releases the medium. Uncommitted writes are lost.
	Close() error
}

func checkRange(size, off, n int) error {
	if off < 0 || n < 0 || off+n > size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, off, n, size)
	}
	return nil
}

func erasedBlock(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = erased
	}
	return b
}
