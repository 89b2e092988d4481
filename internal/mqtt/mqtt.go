// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/alarm-radio/internal/alarm"
)

// DefaultPrefix is the topic root when none is configured.
const DefaultPrefix = "alarm-radio"

// Topics are the topics one device publishes on.
type Topics struct {
	Events  string // alarm events
	System  string // lifecycle events, retained
	Player  string // playback commands
	Display string // display messages
}

// NewTopics derives the topic set from a prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		System:  prefix + "/system",
		Player:  prefix + "/player",
		Display: prefix + "/display",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an alarm event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event alarm.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishCommand sends a playback or display command.
	PublishCommand(cmd Command) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for an alarm event.
type Payload struct {
	Alarm AlarmPayload `json:"alarm"`
}

// AlarmPayload contains the alarm event details.
type AlarmPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Slot      int    `json:"slot"`
	Label     string `json:"label"`
	Reason    string `json:"reason,omitempty"`
	Silent    bool   `json:"silent,omitempty"`
	SleepMins int    `json:"sleep_mins,omitempty"`
}

// FormatPayload creates the JSON payload for an alarm event.
func FormatPayload(event alarm.Event) ([]byte, error) {
	payload := Payload{
		Alarm: AlarmPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Slot:      event.Slot,
			Label:     event.Label,
			Reason:    event.Reason,
			Silent:    event.Silent,
			SleepMins: event.SleepMins,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Command targets.
const (
	TargetPlayer  = "player"
	TargetDisplay = "display"
)

// Command actions.
const (
	ActionVolume  = "VOLUME"
	ActionConnect = "CONNECT"
	ActionStop    = "STOP"
	ActionPower   = "POWER"
	ActionMessage = "MESSAGE"
)

// Command is a request to the playback or display hardware.
type Command struct {
	Timestamp time.Time
	Target    string // TargetPlayer or TargetDisplay
	Action    string
	Volume    int
	URL       string
	On        bool
	Text      string
	Duration  time.Duration
}

// CommandPayload is the wire form of a Command. Only the fields relevant
// to the action are set.
type CommandPayload struct {
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	Volume     *int   `json:"volume,omitempty"`
	URL        string `json:"url,omitempty"`
	On         *bool  `json:"on,omitempty"`
	Text       string `json:"text,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// FormatCommandPayload creates the JSON payload for a command.
func FormatCommandPayload(cmd Command) ([]byte, error) {
	p := CommandPayload{
		Timestamp: cmd.Timestamp.UTC().Format(time.RFC3339),
		Action:    cmd.Action,
	}
	switch cmd.Action {
	case ActionVolume:
		v := cmd.Volume
		p.Volume = &v
	case ActionConnect:
		p.URL = cmd.URL
	case ActionPower:
		on := cmd.On
		p.On = &on
	case ActionMessage:
		p.Text = cmd.Text
		p.DurationMs = cmd.Duration.Milliseconds()
	}
	return json.Marshal(p)
}

// TopicFor returns the topic a command is published on.
func (t Topics) TopicFor(cmd Command) string {
	if cmd.Target == TargetDisplay {
		return t.Display
	}
	return t.Player
}
