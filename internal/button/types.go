// Package button turns raw front-panel button samples into short and long
// presses. It has no GPIO, MQTT or OS dependencies; time is always passed in.
package button

import "time"

// DefaultLongPress is the hold time of a long press.
const DefaultLongPress = 3 * time.Second

// State is the debounced level of the button.
type State string

const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// PressType classifies a press.
type PressType string

const (
	PressShort PressType = "SHORT"
	PressLong  PressType = "LONG"
)

// Press is a detected button gesture.
type Press struct {
	Timestamp time.Time
	Type      PressType
	Held      time.Duration
}

// Input is a single sample of the button level.
type Input struct {
	Pressed bool
	Time    time.Time
}

// Counts tracks the number of each press type since startup.
type Counts struct {
	Short int
	Long  int
}
