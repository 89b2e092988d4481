// Package alarm contains the alarm scheduling engine: the per-slot lifecycle,
// the shared editing guard and the collaborator interfaces the engine drives.
// This package has NO hardware, network or storage dependencies.
// Time is always injectable via the Clock interface.
package alarm

import (
	"fmt"
	"strings"
	"time"
)

// MaxAlarms is the fixed number of alarm slots.
const MaxAlarms = 5

// Timing and volume constants of the alarm lifecycle.
const (
	SnoozeDuration  = 10 * time.Minute
	FadeDuration    = 30 * time.Second
	TimeoutDuration = 5 * time.Minute

	FadeStartVolume = 5
	MinVolume       = 0
	MaxVolume       = 80
	MinAlarmVolume  = 1

	// MaxLabelLen is the label capacity in bytes.
	MaxLabelLen = 16
)

// Schedule selects on which weekdays an alarm fires.
type Schedule int

const (
	ScheduleDaily    Schedule = 0
	ScheduleWeekdays Schedule = 1
	ScheduleWeekends Schedule = 2
	ScheduleOnce     Schedule = 3
)

// Valid reports whether s is a known schedule.
func (s Schedule) Valid() bool {
	switch s {
	case ScheduleDaily, ScheduleWeekdays, ScheduleWeekends, ScheduleOnce:
		return true
	}
	return false
}

func (s Schedule) String() string {
	switch s {
	case ScheduleDaily:
		return "DAILY"
	case ScheduleWeekdays:
		return "WEEKDAYS"
	case ScheduleWeekends:
		return "WEEKENDS"
	case ScheduleOnce:
		return "ONCE"
	}
	return fmt.Sprintf("Schedule(%d)", int(s))
}

// ParseSchedule maps a schedule name as printed by String back to its value.
func ParseSchedule(name string) (Schedule, error) {
	for _, s := range []Schedule{ScheduleDaily, ScheduleWeekdays, ScheduleWeekends, ScheduleOnce} {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSchedule, name)
}

// AutoOff is the sleep-timer hand-off configured for an alarm.
// The numeric codes are the persisted values and are not in duration order.
type AutoOff int

const (
	AutoOffNone AutoOff = 0
	AutoOff15   AutoOff = 1
	AutoOff30   AutoOff = 2
	AutoOff60   AutoOff = 3
	AutoOff90   AutoOff = 4
	AutoOff5    AutoOff = 5
)

// Valid reports whether a is a known auto-off code.
func (a AutoOff) Valid() bool {
	switch a {
	case AutoOffNone, AutoOff15, AutoOff30, AutoOff60, AutoOff90, AutoOff5:
		return true
	}
	return false
}

// Minutes returns the sleep-timer length, or 0 for AutoOffNone and unknown codes.
func (a AutoOff) Minutes() int {
	switch a {
	case AutoOff5:
		return 5
	case AutoOff15:
		return 15
	case AutoOff30:
		return 30
	case AutoOff60:
		return 60
	case AutoOff90:
		return 90
	case AutoOffNone:
		return 0
	}
	return 0
}

// AutoOffFor returns the code for a hand-off of the given length; 0 is
// AutoOffNone.
func AutoOffFor(minutes int) (AutoOff, error) {
	for _, a := range []AutoOff{AutoOffNone, AutoOff5, AutoOff15, AutoOff30, AutoOff60, AutoOff90} {
		if a.Minutes() == minutes {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %d min", ErrInvalidAutoOff, minutes)
}

func (a AutoOff) String() string {
	if a == AutoOffNone {
		return "OFF"
	}
	if !a.Valid() {
		return fmt.Sprintf("AutoOff(%d)", int(a))
	}
	return fmt.Sprintf("%dMIN", a.Minutes())
}

// Alarm is one alarm slot. Runtime fields are never persisted.
type Alarm struct {
	Enabled   bool
	Hour      int
	Minute    int
	Station   int // index into the stream directory, bounds-checked at use
	Schedule  Schedule
	MaxVolume int
	AutoOff   AutoOff
	Label     string

	// Runtime state
	IsActive    bool
	IsSnoozing  bool
	SnoozeStart time.Time
	AlarmStart  time.Time
}

// Registry is the fixed-size, index-addressed alarm collection.
type Registry [MaxAlarms]Alarm

// Default returns the constructed defaults for the given slot.
func Default(slot int) Alarm {
	return Alarm{
		Hour:      6,
		Schedule:  ScheduleDaily,
		MaxVolume: 20,
		AutoOff:   AutoOffNone,
		Label:     fmt.Sprintf("Alarm %d", slot+1),
	}
}

// DefaultRegistry returns a registry with every slot at its defaults.
func DefaultRegistry() Registry {
	var r Registry
	for i := range r {
		r[i] = Default(i)
	}
	return r
}

// Validate checks the persisted fields that are individually range-checked
// on load. It returns the name of the first failing field, or "".
func (a Alarm) Validate() string {
	switch {
	case a.Hour < 0 || a.Hour > 23:
		return "hour"
	case a.Minute < 0 || a.Minute > 59:
		return "minute"
	case a.MaxVolume < MinAlarmVolume || a.MaxVolume > MaxVolume:
		return "max_volume"
	case !a.Schedule.Valid():
		return "schedule"
	case !a.AutoOff.Valid():
		return "auto_off"
	}
	return ""
}

// Persisted returns a copy of a with runtime state cleared.
func (a Alarm) Persisted() Alarm {
	a.IsActive = false
	a.IsSnoozing = false
	a.SnoozeStart = time.Time{}
	a.AlarmStart = time.Time{}
	return a
}

// ValidSlot reports whether i addresses an alarm slot.
func ValidSlot(i int) bool {
	return i >= 0 && i < MaxAlarms
}
