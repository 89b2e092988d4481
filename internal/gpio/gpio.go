// Package gpio reads the front-panel button line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the button state.
type Reader interface {
	// Read returns true while the button is held.
	// The line is active low: raw 0 = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the Raspberry Pi header chip.
const DefaultChip = "gpiochip0"
