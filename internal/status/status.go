// Package status provides a thread-safe status tracker for the alarm-radio
// daemon. It is written by the main loop and read by HTTP handlers, the
// metrics collector and system events.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/button"
	"github.com/sweeney/alarm-radio/internal/settings"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	DebounceMs  int64
	LongPressMs int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	EventsTopic string
	Timezone    string
	Stations    []string
}

// AlarmStatus is the display form of one alarm slot.
type AlarmStatus struct {
	Slot      int
	Label     string
	Enabled   bool
	Hour      int
	Minute    int
	Schedule  alarm.Schedule
	MaxVolume int
	AutoOff   alarm.AutoOff
	Station   int
	Active    bool
	Snoozing  bool
}

// Time returns the alarm time as HH:MM.
func (a AlarmStatus) Time() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// PlayerStatus mirrors the actuator's view of the player.
type PlayerStatus struct {
	Powered bool
	Volume  int
	Playing bool
	URL     string
}

// SleepStatus describes the sleep timer.
type SleepStatus struct {
	Active    bool
	Minutes   int
	Remaining time.Duration
}

// BootInfo records how settings were loaded at boot.
type BootInfo struct {
	ID            string
	LoadPath      settings.LoadPath
	StoredVersion byte
	Repairs       int
}

// Device is the live device state copied from the main loop each tick.
type Device struct {
	ClockSynced  bool
	Alarms       []AlarmStatus
	ActiveSlot   int // -1 when none
	SnoozingSlot int // -1 when none
	EditingSlot  int // -1 when none
	FadeVolume   int
	UserVolume   int
	Player       PlayerStatus
	Sleep        SleepStatus
	AlarmCounts  alarm.Counts
	ButtonCounts button.Counts
	Store        settings.Stats
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Device
	Boot          BootInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, boot BootInfo, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Device:    Device{ActiveSlot: -1, SnoozingSlot: -1, EditingSlot: -1},
			Boot:      boot,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the live device state.
// Called from runLoop on every tick.
func (t *Tracker) Update(d Device) {
	alarms := make([]AlarmStatus, len(d.Alarms))
	copy(alarms, d.Alarms)
	d.Alarms = alarms

	t.mu.Lock()
	t.snap.Device = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// AlarmsFrom converts the registry into display rows.
func AlarmsFrom(r *alarm.Registry) []AlarmStatus {
	out := make([]AlarmStatus, len(r))
	for i, a := range r {
		out[i] = AlarmStatus{
			Slot:      i,
			Label:     a.Label,
			Enabled:   a.Enabled,
			Hour:      a.Hour,
			Minute:    a.Minute,
			Schedule:  a.Schedule,
			MaxVolume: a.MaxVolume,
			AutoOff:   a.AutoOff,
			Station:   a.Station,
			Active:    a.IsActive,
			Snoozing:  a.IsSnoozing,
		}
	}
	return out
}
