package web

import (
	"errors"
	"fmt"

	"github.com/sweeney/alarm-radio/internal/alarm"
)

// Command actions accepted by POST /api/command.
const (
	ActionStop         = "stop"
	ActionSnooze       = "snooze"
	ActionCancelSnooze = "cancel_snooze"
	ActionStart        = "start"
	ActionBeginEdit    = "begin_edit"
	ActionCancelEdit   = "cancel_edit"
	ActionConfirmTime  = "confirm_time"
	ActionSetEnabled   = "set_enabled"
	ActionReset        = "reset"
	ActionSleep        = "sleep"

	ActionSetSchedule  = "set_schedule"
	ActionSetMaxVolume = "set_max_volume"
	ActionSetAutoOff   = "set_auto_off"
	ActionSetStation   = "set_station"
	ActionSetLabel     = "set_label"
)

// ErrUnknownAction is returned for actions the endpoint does not handle.
var ErrUnknownAction = errors.New("unknown action")

// Command is the JSON body of POST /api/command.
type Command struct {
	Action  string `json:"action"`
	Slot    *int   `json:"slot,omitempty"`
	Hour    int    `json:"hour,omitempty"`
	Minute  int    `json:"minute,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
	Minutes int    `json:"minutes,omitempty"` // sleep and auto-off length

	Schedule  string `json:"schedule,omitempty"` // DAILY, WEEKDAYS, WEEKENDS or ONCE
	MaxVolume int    `json:"max_volume,omitempty"`
	Station   int    `json:"station,omitempty"`
	Label     string `json:"label,omitempty"`
}

// SlotIndex returns the target slot, or -1 when none was given.
func (c Command) SlotIndex() int {
	if c.Slot == nil {
		return -1
	}
	return *c.Slot
}

// Validate checks the action name and that slot-addressed actions carry
// a valid slot.
func (c Command) Validate() error {
	switch c.Action {
	case ActionStop, ActionSnooze, ActionCancelSnooze, ActionCancelEdit, ActionSleep:
		return nil
	case ActionStart, ActionBeginEdit, ActionConfirmTime, ActionSetEnabled, ActionReset,
		ActionSetSchedule, ActionSetMaxVolume, ActionSetAutoOff, ActionSetStation, ActionSetLabel:
		if c.Slot == nil {
			return fmt.Errorf("%s: slot required", c.Action)
		}
		if !alarm.ValidSlot(*c.Slot) {
			return fmt.Errorf("%s: %w", c.Action, alarm.ErrInvalidSlot)
		}
		return nil
	default:
		return fmt.Errorf("%q: %w", c.Action, ErrUnknownAction)
	}
}

// Result is the outcome of a command, returned to the HTTP client.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Request carries a command to the main loop. The main loop must send
// exactly one Result on Reply.
type Request struct {
	Command Command
	Reply   chan Result
}

// NewRequest creates a request with a buffered reply channel so the main
// loop never blocks on a client that gave up.
func NewRequest(c Command) Request {
	return Request{Command: c, Reply: make(chan Result, 1)}
}
