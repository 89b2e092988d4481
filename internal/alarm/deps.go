package alarm

import "time"

// Clock supplies wall-clock time. The bool is false while time is not
// known (e.g. before NTP sync); the engine then does nothing.
type Clock interface {
	Now() (time.Time, bool)
}

// Player is the playback actuator.
type Player interface {
	// SetVolume sets the playback volume (0..80). It never changes the
	// user's volume setting.
	SetVolume(level int)
	Connect(url string) error
	Stop()
	IsPowered() bool
	SetPowered(on bool)
}

// Notifier shows short messages on the display.
type Notifier interface {
	ShowMessage(text string, d time.Duration)
}

// Station is one entry of the stream directory.
type Station struct {
	Name string
	URL  string
}

// StreamDirectory lists the configured stations. Index validity is owned
// by the caller.
type StreamDirectory interface {
	Count() int
	At(i int) Station
}

// SleepTimer is the sleep-timer bridge used for auto-off.
type SleepTimer interface {
	Arm(minutes int)
}

// Settings is the live configuration the engine mutates and commits.
type Settings interface {
	Slots() *Registry
	UserVolume() int
	SetUserVolume(v int)
	// Commit persists the current configuration.
	Commit() error
}
