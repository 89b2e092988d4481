package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	BootID        string       `json:"boot_id"`
	ClockSynced   bool         `json:"clock_synced"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Alarms        []AlarmJSON  `json:"alarms"`
	Session       SessionJSON  `json:"session"`
	Player        PlayerJSON   `json:"player"`
	Sleep         SleepJSON    `json:"sleep_timer"`
	Counts        CountsJSON   `json:"event_counts"`
	Settings      SettingsJSON `json:"settings"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// AlarmJSON is the JSON representation of one alarm slot.
type AlarmJSON struct {
	Slot      int    `json:"slot"`
	Label     string `json:"label"`
	Enabled   bool   `json:"enabled"`
	Time      string `json:"time"`
	Schedule  string `json:"schedule"`
	MaxVolume int    `json:"max_volume"`
	AutoOff   string `json:"auto_off"`
	Station   int    `json:"station"`
	Active    bool   `json:"active"`
	Snoozing  bool   `json:"snoozing"`
}

// SessionJSON is the JSON representation of the alarm session.
// Slots are -1 when unset.
type SessionJSON struct {
	ActiveSlot   int `json:"active_slot"`
	SnoozingSlot int `json:"snoozing_slot"`
	EditingSlot  int `json:"editing_slot"`
	FadeVolume   int `json:"fade_volume"`
	UserVolume   int `json:"user_volume"`
}

// PlayerJSON is the JSON representation of the player.
type PlayerJSON struct {
	Powered bool   `json:"powered"`
	Volume  int    `json:"volume"`
	Playing bool   `json:"playing"`
	URL     string `json:"url,omitempty"`
}

// SleepJSON is the JSON representation of the sleep timer.
type SleepJSON struct {
	Active           bool  `json:"active"`
	Minutes          int   `json:"minutes"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Fired           int `json:"fired"`
	Timeouts        int `json:"timeouts"`
	Stopped         int `json:"stopped"`
	Snoozed         int `json:"snoozed"`
	SnoozeCancelled int `json:"snooze_cancelled"`
	ShortPresses    int `json:"short_presses"`
	LongPresses     int `json:"long_presses"`
}

// SettingsJSON reports the persistent store.
type SettingsJSON struct {
	LoadPath      string `json:"load_path"`
	StoredVersion int    `json:"stored_version"`
	Repairs       int    `json:"repairs"`
	Saves         int    `json:"saves"`
	SaveErrors    int    `json:"save_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64    `json:"tick_ms"`
	DebounceMs  int64    `json:"debounce_ms"`
	LongPressMs int64    `json:"long_press_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Broker      string   `json:"broker"`
	HTTPPort    string   `json:"http_port"`
	WSBroker    string   `json:"ws_broker,omitempty"`
	EventsTopic string   `json:"events_topic,omitempty"`
	Timezone    string   `json:"timezone"`
	Stations    []string `json:"stations"`
}

func buildAlarms(snap Snapshot) []AlarmJSON {
	out := make([]AlarmJSON, 0, len(snap.Alarms))
	for _, a := range snap.Alarms {
		out = append(out, AlarmJSON{
			Slot:      a.Slot,
			Label:     a.Label,
			Enabled:   a.Enabled,
			Time:      a.Time(),
			Schedule:  a.Schedule.String(),
			MaxVolume: a.MaxVolume,
			AutoOff:   a.AutoOff.String(),
			Station:   a.Station,
			Active:    a.Active,
			Snoozing:  a.Snoozing,
		})
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	stations := snap.Config.Stations
	if stations == nil {
		stations = []string{}
	}

	return StatusInner{
		BootID:        snap.Boot.ID,
		ClockSynced:   snap.ClockSynced,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Alarms:        buildAlarms(snap),
		Session: SessionJSON{
			ActiveSlot:   snap.ActiveSlot,
			SnoozingSlot: snap.SnoozingSlot,
			EditingSlot:  snap.EditingSlot,
			FadeVolume:   snap.FadeVolume,
			UserVolume:   snap.UserVolume,
		},
		Player: PlayerJSON{
			Powered: snap.Player.Powered,
			Volume:  snap.Player.Volume,
			Playing: snap.Player.Playing,
			URL:     snap.Player.URL,
		},
		Sleep: SleepJSON{
			Active:           snap.Sleep.Active,
			Minutes:          snap.Sleep.Minutes,
			RemainingSeconds: int64(snap.Sleep.Remaining.Truncate(time.Second).Seconds()),
		},
		Counts: CountsJSON{
			Fired:           snap.AlarmCounts.Fired,
			Timeouts:        snap.AlarmCounts.Timeouts,
			Stopped:         snap.AlarmCounts.Stopped,
			Snoozed:         snap.AlarmCounts.Snoozed,
			SnoozeCancelled: snap.AlarmCounts.SnoozeCancelled,
			ShortPresses:    snap.ButtonCounts.Short,
			LongPresses:     snap.ButtonCounts.Long,
		},
		Settings: SettingsJSON{
			LoadPath:      string(snap.Boot.LoadPath),
			StoredVersion: int(snap.Boot.StoredVersion),
			Repairs:       snap.Boot.Repairs,
			Saves:         snap.Store.Saves,
			SaveErrors:    snap.Store.SaveErrors,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			LongPressMs: snap.Config.LongPressMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
			EventsTopic: snap.Config.EventsTopic,
			Timezone:    snap.Config.Timezone,
			Stations:    stations,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
