package alarm

import "time"

// EventType identifies an alarm lifecycle transition.
type EventType string

const (
	EventFired           EventType = "ALARM_FIRED"
	EventTimeout         EventType = "ALARM_TIMEOUT"
	EventStopped         EventType = "ALARM_STOPPED"
	EventSnoozed         EventType = "ALARM_SNOOZED"
	EventSnoozeCancelled EventType = "SNOOZE_CANCELLED"
)

// Fire reasons.
const (
	ReasonSchedule = "schedule"
	ReasonSnooze   = "snooze"
	ReasonManual   = "manual"
)

// Event describes a lifecycle transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Slot      int
	Label     string
	Reason    string // fire reason, empty for other types
	Silent    bool   // fired without a playable station
	SleepMins int    // auto-off minutes armed on timeout
}

// Counts tracks the number of each event type since startup.
type Counts struct {
	Fired           int
	Timeouts        int
	Stopped         int
	Snoozed         int
	SnoozeCancelled int
}

func (c *Counts) add(e Event) {
	switch e.Type {
	case EventFired:
		c.Fired++
	case EventTimeout:
		c.Timeouts++
	case EventStopped:
		c.Stopped++
	case EventSnoozed:
		c.Snoozed++
	case EventSnoozeCancelled:
		c.SnoozeCancelled++
	}
}
