//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned off Linux, where there is no character device.
var ErrUnsupported = errors.New("gpio: button input requires linux")

// RealReader is a placeholder so the daemon builds on development machines.
// Set the button pin to -1 there.
type RealReader struct{}

func NewRealReader(chipName string, pin int) (*RealReader, error) {
	return nil, ErrUnsupported
}

func (r *RealReader) Read() (bool, error) { return false, ErrUnsupported }

func (r *RealReader) Close() error { return nil }
