// Package settings persists the device configuration record: global
// playback/display settings, network credentials and the alarm slots,
// serialized as one fixed-layout, schema-versioned block.
package settings

import "github.com/sweeney/alarm-radio/internal/alarm"

// CurrentVersion is the schema version written by Save.
const CurrentVersion byte = 6

// Global defaults.
const (
	DefaultVolume = 5
	MinVolume     = alarm.MinVolume
	MaxVolume     = alarm.MaxVolume
)

// Config is the persisted configuration record.
type Config struct {
	Version           byte
	Volume            int
	CurrentStream     int
	BacklightAlwaysOn bool
	RadioPowerOn      bool
	WiFiSSID          string
	WiFiPassword      string
	WeatherAPIKey     string
	Alarms            alarm.Registry
}

// Defaults returns the first-boot configuration.
func Defaults() Config {
	return Config{
		Version:           CurrentVersion,
		Volume:            DefaultVolume,
		CurrentStream:     0,
		BacklightAlwaysOn: true,
		RadioPowerOn:      true,
		Alarms:            alarm.DefaultRegistry(),
	}
}

// clampVolume forces a stored volume into range: negative values fall back
// to the default, large values to the maximum.
func clampVolume(v int) (int, bool) {
	switch {
	case v < MinVolume:
		return DefaultVolume, true
	case v > MaxVolume:
		return MaxVolume, true
	}
	return v, false
}
