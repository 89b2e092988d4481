package alarm

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Validation errors returned by Editor.
var (
	ErrInvalidTime     = errors.New("alarm: invalid time")
	ErrInvalidVolume   = errors.New("alarm: invalid max volume")
	ErrInvalidSchedule = errors.New("alarm: invalid schedule")
	ErrInvalidAutoOff  = errors.New("alarm: invalid auto-off")
	ErrInvalidStation  = errors.New("alarm: invalid station")
)

// Editor applies the menu's state-confirming edits to the registry and
// commits each one. It runs on the main loop; only BeginTimeEdit may also
// be called from the input context.
type Editor struct {
	settings Settings
	guard    *EditGuard
	log      *zap.Logger
}

// NewEditor creates an Editor sharing guard with the engine.
func NewEditor(settings Settings, guard *EditGuard, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{settings: settings, guard: guard, log: log.Named("editor")}
}

// BeginTimeEdit marks slot as being edited so the engine skips it.
func (ed *Editor) BeginTimeEdit(slot int) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	ed.guard.Begin(slot)
	return nil
}

// CancelTimeEdit releases the guard without changing the alarm.
func (ed *Editor) CancelTimeEdit() {
	ed.guard.End()
}

// ConfirmTime stores the edited time, releases the guard and commits.
func (ed *Editor) ConfirmTime(slot, hour, minute int) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	a := &ed.settings.Slots()[slot]
	a.Hour = hour
	a.Minute = minute
	ed.guard.End()
	return ed.commit(slot, "time")
}

// SetEnabled toggles a slot on or off and commits.
func (ed *Editor) SetEnabled(slot int, on bool) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	ed.settings.Slots()[slot].Enabled = on
	return ed.commit(slot, "enabled")
}

// SetSchedule changes the slot's schedule and commits.
func (ed *Editor) SetSchedule(slot int, s Schedule) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSchedule, int(s))
	}
	ed.settings.Slots()[slot].Schedule = s
	return ed.commit(slot, "schedule")
}

// SetMaxVolume changes the fade ceiling and commits.
func (ed *Editor) SetMaxVolume(slot, v int) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	if v < MinAlarmVolume || v > MaxVolume {
		return fmt.Errorf("%w: %d", ErrInvalidVolume, v)
	}
	ed.settings.Slots()[slot].MaxVolume = v
	return ed.commit(slot, "max_volume")
}

// SetAutoOff changes the auto-off hand-off and commits.
func (ed *Editor) SetAutoOff(slot int, a AutoOff) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	if !a.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAutoOff, int(a))
	}
	ed.settings.Slots()[slot].AutoOff = a
	return ed.commit(slot, "auto_off")
}

// SetStation changes the alarm station and commits. Only negative
// indexes are rejected; the directory size may change later.
func (ed *Editor) SetStation(slot, station int) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	if station < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStation, station)
	}
	ed.settings.Slots()[slot].Station = station
	return ed.commit(slot, "station")
}

// SetLabel changes the label, truncated to MaxLabelLen bytes, and commits.
func (ed *Editor) SetLabel(slot int, label string) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	ed.settings.Slots()[slot].Label = TruncateLabel(label)
	return ed.commit(slot, "label")
}

// Reset restores the slot's defaults and commits. Runtime state is
// dropped; the engine notices on its next tick.
func (ed *Editor) Reset(slot int) error {
	if !ValidSlot(slot) {
		return ErrInvalidSlot
	}
	ed.settings.Slots()[slot] = Default(slot)
	if ed.guard.Holds(slot) {
		ed.guard.End()
	}
	return ed.commit(slot, "reset")
}

func (ed *Editor) commit(slot int, field string) error {
	if err := ed.settings.Commit(); err != nil {
		return fmt.Errorf("commit %s of slot %d: %w", field, slot, err)
	}
	ed.log.Info("alarm updated", zap.Int("slot", slot), zap.String("field", field))
	return nil
}

// TruncateLabel cuts s to at most MaxLabelLen bytes on a rune boundary.
func TruncateLabel(s string) string {
	if len(s) <= MaxLabelLen {
		return s
	}
	s = s[:MaxLabelLen]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
