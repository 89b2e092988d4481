package alarm

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidSlot is returned for slot indexes outside 0..MaxAlarms-1.
	ErrInvalidSlot = errors.New("alarm: invalid slot")
	// ErrClockUnavailable is returned by StartAlarm before the clock syncs.
	ErrClockUnavailable = errors.New("alarm: clock not synced")
)

// Display messages shown on user actions.
const (
	MsgStopped         = "STOPPED"
	MsgSnoozed         = "SNOOZED 10MIN"
	MsgSnoozeCancelled = "ALARM STOPPED"
	MessageDuration    = 2 * time.Second
)

// Session is the volatile engine state. It is recreated at every boot.
type Session struct {
	ActiveIndex           int // -1 when no alarm is firing
	FadeStart             time.Time
	FadeVolume            int
	UserVolumeBeforeAlarm int
	// FiredMinute is the wall-clock minute each slot last fired in, so a
	// slot stopped within its own minute is not fired again.
	FiredMinute [MaxAlarms]time.Time
}

// Deps are the engine collaborators. Clock, Settings and Player are
// required; the rest may be nil.
type Deps struct {
	Clock    Clock
	Settings Settings
	Player   Player
	Notifier Notifier
	Streams  StreamDirectory
	Sleep    SleepTimer
	Guard    *EditGuard
}

// Engine evaluates the alarm registry once per tick and drives each slot's
// lifecycle. It is not safe for concurrent use; only the guard may be
// touched from another goroutine.
type Engine struct {
	clock    Clock
	settings Settings
	player   Player
	notifier Notifier
	streams  StreamDirectory
	sleep    SleepTimer
	guard    *EditGuard
	log      *zap.Logger

	session Session
	pushed  int       // last volume pushed to the player, -1 = unknown
	synced  time.Time // last synced clock reading
	counts  Counts
}

// NewEngine creates an engine with an idle session.
func NewEngine(d Deps, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		clock:    d.Clock,
		settings: d.Settings,
		player:   d.Player,
		notifier: d.Notifier,
		streams:  d.Streams,
		sleep:    d.Sleep,
		guard:    d.Guard,
		log:      log.Named("alarm"),
		session:  Session{ActiveIndex: -1},
		pushed:   -1,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.streams == nil {
		e.streams = noStreams{}
	}
	if e.sleep == nil {
		e.sleep = nopSleep{}
	}
	if e.guard == nil {
		e.guard = &EditGuard{}
	}
	return e
}

// Check runs one scheduler tick. It returns the lifecycle events of this
// tick; at most one alarm starts firing per call.
func (e *Engine) Check() []Event {
	now, ok := e.clock.Now()
	if !ok {
		return nil
	}
	e.synced = now

	slots := e.settings.Slots()
	e.reconcile(slots)

	// Timeout guard runs first and ends the tick.
	if i := e.session.ActiveIndex; i >= 0 && now.Sub(slots[i].AlarmStart) >= TimeoutDuration {
		ev := e.timeout(slots, now)
		e.counts.add(ev)
		return []Event{ev}
	}

	var events []Event
	if e.session.ActiveIndex < 0 {
		if ev, fired := e.scan(slots, now); fired {
			events = append(events, ev)
		}
	}

	if e.session.ActiveIndex >= 0 {
		e.updateFade(slots, now)
	}

	for _, ev := range events {
		e.counts.add(ev)
	}
	return events
}

// scan looks for the first slot, by ascending index, that should fire now.
func (e *Engine) scan(slots *Registry, now time.Time) (Event, bool) {
	for i := range slots {
		a := &slots[i]
		if !a.Enabled {
			continue
		}

		// A half-edited alarm must not fire.
		if e.guard.Holds(i) {
			e.log.Debug("skipping slot under edit", zap.Int("slot", i))
			continue
		}

		if a.IsSnoozing {
			if now.Sub(a.SnoozeStart) >= SnoozeDuration {
				a.IsSnoozing = false
				return e.fire(slots, i, now, ReasonSnooze), true
			}
			continue
		}

		if a.IsActive {
			continue
		}

		if IsAlarmTime(*a, now) && !e.firedThisMinute(i, now) {
			return e.fire(slots, i, now, ReasonSchedule), true
		}
	}
	return Event{}, false
}

func (e *Engine) firedThisMinute(i int, now time.Time) bool {
	last := e.session.FiredMinute[i]
	return !last.IsZero() && last.Equal(now.Truncate(time.Minute))
}

// fire starts slot i. Shared by schedule matches, snooze wake-ups and
// manual starts.
func (e *Engine) fire(slots *Registry, i int, now time.Time, reason string) Event {
	a := &slots[i]

	prev := e.session.ActiveIndex
	if prev >= 0 && prev != i {
		// Hand over: only one alarm may be active.
		slots[prev].IsActive = false
	}
	if prev < 0 {
		e.session.UserVolumeBeforeAlarm = e.settings.UserVolume()
	}

	a.IsActive = true
	a.IsSnoozing = false
	a.AlarmStart = now
	e.session.ActiveIndex = i
	e.session.FadeStart = now
	e.session.FadeVolume = FadeStartVolume
	e.session.FiredMinute[i] = now.Truncate(time.Minute)

	if !e.player.IsPowered() {
		e.player.SetPowered(true)
	}

	silent := true
	if n := e.streams.Count(); a.Station >= 0 && a.Station < n {
		st := e.streams.At(a.Station)
		if err := e.player.Connect(st.URL); err != nil {
			e.log.Warn("connect alarm station failed",
				zap.Int("slot", i), zap.String("station", st.Name), zap.Error(err))
		} else {
			silent = false
		}
	} else {
		e.log.Warn("alarm station out of range, firing silent",
			zap.Int("slot", i), zap.Int("station", a.Station), zap.Int("stations", n))
	}

	e.pushed = -1
	e.push(FadeStartVolume)

	if a.Schedule == ScheduleOnce {
		a.Enabled = false
		if err := e.settings.Commit(); err != nil {
			e.log.Error("commit after once alarm failed", zap.Int("slot", i), zap.Error(err))
		}
	}

	e.log.Info("alarm fired",
		zap.Int("slot", i), zap.String("label", a.Label), zap.String("reason", reason), zap.Bool("silent", silent))

	return Event{
		Timestamp: now,
		Type:      EventFired,
		Slot:      i,
		Label:     a.Label,
		Reason:    reason,
		Silent:    silent,
	}
}

// updateFade ramps the playback volume linearly from FadeStartVolume to
// the slot's MaxVolume over FadeDuration.
func (e *Engine) updateFade(slots *Registry, now time.Time) {
	a := slots[e.session.ActiveIndex]
	e.session.FadeVolume = FadeVolumeAt(a.MaxVolume, now.Sub(e.session.FadeStart))
	e.push(e.session.FadeVolume)
}

// FadeVolumeAt returns the fade volume after elapsed time, truncated.
func FadeVolumeAt(maxVolume int, elapsed time.Duration) int {
	if elapsed >= FadeDuration {
		return maxVolume
	}
	if elapsed < 0 {
		elapsed = 0
	}
	span := int64(maxVolume - FadeStartVolume)
	return FadeStartVolume + int(span*elapsed.Milliseconds()/FadeDuration.Milliseconds())
}

func (e *Engine) timeout(slots *Registry, now time.Time) Event {
	i := e.session.ActiveIndex
	a := &slots[i]

	mins := a.AutoOff.Minutes()
	if mins > 0 {
		e.sleep.Arm(mins)
	}

	a.IsActive = false
	a.IsSnoozing = false
	e.endSession()

	e.log.Info("alarm timed out", zap.Int("slot", i), zap.Int("auto_off_minutes", mins))
	return Event{
		Timestamp: now,
		Type:      EventTimeout,
		Slot:      i,
		Label:     a.Label,
		SleepMins: mins,
	}
}

// endSession clears the active alarm and restores the user's volume.
func (e *Engine) endSession() {
	e.session.ActiveIndex = -1
	e.session.FadeVolume = 0
	e.settings.SetUserVolume(e.session.UserVolumeBeforeAlarm)
	e.pushed = -1
	e.push(e.session.UserVolumeBeforeAlarm)
}

func (e *Engine) push(v int) {
	if v == e.pushed {
		return
	}
	e.player.SetVolume(v)
	e.pushed = v
}

// reconcile makes the registry's runtime flags agree with the session:
// only the session's active slot may be active, and never while snoozing.
func (e *Engine) reconcile(slots *Registry) {
	if i := e.session.ActiveIndex; i >= 0 && !slots[i].IsActive {
		// Cleared underneath us (slot reset or registry reloaded).
		e.log.Info("active alarm cleared externally", zap.Int("slot", i))
		e.endSession()
	}
	for i := range slots {
		a := &slots[i]
		if a.IsActive && i != e.session.ActiveIndex {
			e.log.Warn("clearing stray active flag", zap.Int("slot", i))
			a.IsActive = false
		}
		if a.IsActive && a.IsSnoozing {
			a.IsSnoozing = false
		}
	}
}

// StartAlarm fires slot i immediately, regardless of its schedule.
func (e *Engine) StartAlarm(i int) (Event, error) {
	if !ValidSlot(i) {
		return Event{}, ErrInvalidSlot
	}
	now, ok := e.clock.Now()
	if !ok {
		return Event{}, ErrClockUnavailable
	}
	e.synced = now
	ev := e.fire(e.settings.Slots(), i, now, ReasonManual)
	e.counts.add(ev)
	return ev, nil
}

// StopAlarm cancels the firing alarm and restores the user's volume.
// It reports false when no alarm is active.
func (e *Engine) StopAlarm() (Event, bool) {
	i := e.session.ActiveIndex
	if i < 0 {
		return Event{}, false
	}
	now := e.lastKnown()
	slots := e.settings.Slots()
	a := &slots[i]
	a.IsActive = false
	a.IsSnoozing = false
	e.endSession()
	e.notifier.ShowMessage(MsgStopped, MessageDuration)

	e.log.Info("alarm stopped", zap.Int("slot", i))
	ev := Event{Timestamp: now, Type: EventStopped, Slot: i, Label: a.Label}
	e.counts.add(ev)
	return ev, true
}

// SnoozeAlarm silences the firing alarm for SnoozeDuration. AlarmStart is
// kept. It reports false when no alarm is active.
func (e *Engine) SnoozeAlarm() (Event, bool) {
	i := e.session.ActiveIndex
	if i < 0 {
		return Event{}, false
	}
	now := e.lastKnown()
	slots := e.settings.Slots()
	a := &slots[i]
	a.IsActive = false
	a.IsSnoozing = true
	a.SnoozeStart = now

	e.player.SetPowered(false)
	e.player.Stop()

	e.session.ActiveIndex = -1
	e.session.FadeVolume = 0
	e.notifier.ShowMessage(MsgSnoozed, MessageDuration)

	e.log.Info("alarm snoozed", zap.Int("slot", i), zap.Duration("for", SnoozeDuration))
	ev := Event{Timestamp: now, Type: EventSnoozed, Slot: i, Label: a.Label}
	e.counts.add(ev)
	return ev, true
}

// CancelSnooze ends the pending snooze and commits the configuration.
// It reports false when no alarm is snoozing.
func (e *Engine) CancelSnooze() (Event, bool) {
	i, ok := e.SnoozingIndex()
	if !ok {
		return Event{}, false
	}
	now := e.lastKnown()
	slots := e.settings.Slots()
	a := &slots[i]
	a.IsSnoozing = false
	a.SnoozeStart = time.Time{}
	a.IsActive = false

	if err := e.settings.Commit(); err != nil {
		e.log.Error("commit after snooze cancel failed", zap.Int("slot", i), zap.Error(err))
	}

	// The player was left at the fade level when snoozed.
	e.pushed = -1
	e.push(e.settings.UserVolume())
	e.notifier.ShowMessage(MsgSnoozeCancelled, MessageDuration)

	e.log.Info("snooze cancelled", zap.Int("slot", i))
	ev := Event{Timestamp: now, Type: EventSnoozeCancelled, Slot: i, Label: a.Label}
	e.counts.add(ev)
	return ev, true
}

// lastKnown returns the clock reading, or the last synced one while the
// clock is unavailable. Snooze and stop must work even then.
func (e *Engine) lastKnown() time.Time {
	if now, ok := e.clock.Now(); ok {
		e.synced = now
		return now
	}
	return e.synced
}

// SnoozingIndex returns the first snoozing slot.
func (e *Engine) SnoozingIndex() (int, bool) {
	slots := e.settings.Slots()
	for i := range slots {
		if slots[i].IsSnoozing {
			return i, true
		}
	}
	return -1, false
}

// ActiveIndex returns the firing slot.
func (e *Engine) ActiveIndex() (int, bool) {
	return e.session.ActiveIndex, e.session.ActiveIndex >= 0
}

// Session returns a copy of the session state.
func (e *Engine) Session() Session {
	return e.session
}

// Counts returns a copy of the event counters.
func (e *Engine) Counts() Counts {
	return e.counts
}

type nopNotifier struct{}

func (nopNotifier) ShowMessage(string, time.Duration) {}

type noStreams struct{}

func (noStreams) Count() int     { return 0 }
func (noStreams) At(int) Station { return Station{} }

type nopSleep struct{}

func (nopSleep) Arm(int) {}
