package alarm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-01-05 is a Monday.
var monday7am = time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	clock    *FakeClock
	settings *MemSettings
	player   *FakePlayer
	notifier *FakeNotifier
	sleep    *FakeSleep
	guard    *EditGuard
}

func newHarness(t *testing.T, at time.Time) *harness {
	t.Helper()
	h := &harness{
		clock:    NewFakeClock(at),
		settings: NewMemSettings(12),
		player:   &FakePlayer{},
		notifier: &FakeNotifier{},
		sleep:    &FakeSleep{},
		guard:    &EditGuard{},
	}
	h.engine = NewEngine(Deps{
		Clock:    h.clock,
		Settings: h.settings,
		Player:   h.player,
		Notifier: h.notifier,
		Streams: Stations{
			{Name: "Radio One", URL: "http://one.example/stream"},
			{Name: "Radio Two", URL: "http://two.example/stream"},
		},
		Sleep: h.sleep,
		Guard: h.guard,
	}, nil)
	return h
}

// enable configures slot as an enabled daily alarm at hh:mm.
func (h *harness) enable(slot, hh, mm int) *Alarm {
	a := &h.settings.Registry[slot]
	a.Enabled = true
	a.Hour = hh
	a.Minute = mm
	a.Schedule = ScheduleDaily
	return a
}

func (h *harness) activeCount() int {
	n := 0
	for _, a := range h.settings.Registry {
		if a.IsActive {
			n++
		}
	}
	return n
}

func TestCheckNoOpWithoutClock(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.clock.Synced = false

	events := h.engine.Check()

	assert.Empty(t, events)
	assert.False(t, h.settings.Registry[0].IsActive)
	assert.Empty(t, h.player.Volumes)

	// Deferred, not suppressed: the next synced tick fires.
	h.clock.Synced = true
	events = h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, EventFired, events[0].Type)
}

func TestCheckFiresMatchingAlarm(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(1, 7, 0)
	a.Station = 1

	events := h.engine.Check()

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, EventFired, ev.Type)
	assert.Equal(t, 1, ev.Slot)
	assert.Equal(t, ReasonSchedule, ev.Reason)
	assert.False(t, ev.Silent)

	assert.True(t, a.IsActive)
	assert.Equal(t, monday7am, a.AlarmStart)
	assert.True(t, h.player.Powered)
	assert.Equal(t, []string{"http://two.example/stream"}, h.player.Connected)
	assert.Equal(t, FadeStartVolume, h.player.Volume)

	s := h.engine.Session()
	assert.Equal(t, 1, s.ActiveIndex)
	assert.Equal(t, monday7am, s.FadeStart)
	assert.Equal(t, FadeStartVolume, s.FadeVolume)
	assert.Equal(t, 12, s.UserVolumeBeforeAlarm)

	// The user's volume setting is never touched by the fade.
	assert.Equal(t, 12, h.settings.Volume)
	assert.Equal(t, 0, h.settings.Commits)
}

func TestCheckSkipsDisabledAndNonMatching(t *testing.T) {
	h := newHarness(t, monday7am)
	h.settings.Registry[0].Hour = 7 // matches but disabled
	h.enable(1, 7, 1)

	assert.Empty(t, h.engine.Check())
	assert.Equal(t, 0, h.activeCount())
}

func TestCheckFirstMatchWins(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.enable(2, 7, 0)

	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Slot)
	assert.Equal(t, 1, h.activeCount())

	// Slot 2 does not start while slot 0 rings.
	h.clock.Advance(time.Second)
	assert.Empty(t, h.engine.Check())
	assert.True(t, h.settings.Registry[0].IsActive)
	assert.False(t, h.settings.Registry[2].IsActive)
}

func TestOnceAlarmDisabledOnFire(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(3, 7, 0)
	a.Schedule = ScheduleOnce

	events := h.engine.Check()

	require.Len(t, events, 1)
	assert.True(t, a.IsActive)
	assert.False(t, a.Enabled)
	assert.Equal(t, 1, h.settings.Commits)
	assert.False(t, h.settings.Committed[3].Enabled)
}

func TestOnceAlarmCommitFailureStillFires(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.Schedule = ScheduleOnce
	h.settings.CommitError = errors.New("flash worn out")

	events := h.engine.Check()

	require.Len(t, events, 1)
	assert.True(t, a.IsActive)
	assert.False(t, a.Enabled)
}

func TestFadeRampsToMaxVolume(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.MaxVolume = 45

	h.engine.Check()
	last := h.engine.Session().FadeVolume
	require.Equal(t, FadeStartVolume, last)

	for i := 1; i <= 40; i++ {
		h.clock.Advance(time.Second)
		h.engine.Check()
		v := h.engine.Session().FadeVolume
		assert.GreaterOrEqual(t, v, last, "fade went down at %ds", i)
		last = v

		switch {
		case i == 15:
			assert.Equal(t, 25, v)
		case i >= 30:
			assert.Equal(t, 45, v)
		}
	}
	assert.Equal(t, 45, h.player.Volume)
	assert.Equal(t, 12, h.settings.Volume)
}

func TestFadePushesOnlyOnChange(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.MaxVolume = 6

	h.engine.Check()
	for i := 0; i < 35; i++ {
		h.clock.Advance(time.Second)
		h.engine.Check()
	}

	assert.Equal(t, []int{5, 6}, h.player.Volumes)
}

func TestFadeVolumeAt(t *testing.T) {
	tests := []struct {
		max     int
		elapsed time.Duration
		want    int
	}{
		{80, 0, 5},
		{80, -time.Second, 5},
		{80, 10 * time.Second, 30},
		{80, 29999 * time.Millisecond, 79},
		{80, 30 * time.Second, 80},
		{80, time.Hour, 80},
		{20, 15 * time.Second, 12},
		{1, 30 * time.Second, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FadeVolumeAt(tt.max, tt.elapsed), "max=%d elapsed=%v", tt.max, tt.elapsed)
	}
}

func TestTimeoutRestoresVolumeAndArmsSleep(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.AutoOff = AutoOff15

	h.engine.Check()

	h.clock.Advance(TimeoutDuration - time.Second)
	assert.Empty(t, h.engine.Check())
	assert.True(t, a.IsActive)

	h.clock.Advance(time.Second)
	events := h.engine.Check()

	require.Len(t, events, 1)
	assert.Equal(t, EventTimeout, events[0].Type)
	assert.Equal(t, 15, events[0].SleepMins)
	assert.False(t, a.IsActive)
	assert.False(t, a.IsSnoozing)
	assert.Equal(t, []int{15}, h.sleep.Armed)
	assert.Equal(t, 12, h.player.Volume)
	assert.Equal(t, 12, h.settings.Volume)
	_, active := h.engine.ActiveIndex()
	assert.False(t, active)
}

func TestTimeoutWithoutAutoOff(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)

	h.engine.Check()
	h.clock.Advance(TimeoutDuration)
	events := h.engine.Check()

	require.Len(t, events, 1)
	assert.Equal(t, EventTimeout, events[0].Type)
	assert.Empty(t, h.sleep.Armed)
}

func TestTimeoutShortCircuitsTick(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.enable(1, 7, 5)

	h.engine.Check()
	h.clock.Advance(TimeoutDuration) // 07:05, slot 1 matches

	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, EventTimeout, events[0].Type)
	assert.False(t, h.settings.Registry[1].IsActive)

	events = h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, EventFired, events[0].Type)
	assert.Equal(t, 1, events[0].Slot)
}

func TestSnoozeAndWake(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(2, 7, 0)

	h.engine.Check()
	h.clock.Advance(10 * time.Second)
	h.engine.Check()

	ev, ok := h.engine.SnoozeAlarm()
	require.True(t, ok)
	assert.Equal(t, EventSnoozed, ev.Type)
	assert.Equal(t, 2, ev.Slot)
	assert.False(t, a.IsActive)
	assert.True(t, a.IsSnoozing)
	assert.Equal(t, monday7am, a.AlarmStart, "AlarmStart must survive snooze")
	assert.Equal(t, h.clock.T, a.SnoozeStart)
	assert.False(t, h.player.Powered)
	assert.Equal(t, 1, h.player.Stops)
	assert.Equal(t, MsgSnoozed, h.notifier.Last())

	idx, ok := h.engine.SnoozingIndex()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	snoozedAt := h.clock.T
	h.clock.Advance(SnoozeDuration - time.Second)
	assert.Empty(t, h.engine.Check())
	assert.True(t, a.IsSnoozing)

	h.clock.Advance(time.Second)
	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, EventFired, events[0].Type)
	assert.Equal(t, ReasonSnooze, events[0].Reason)
	assert.True(t, a.IsActive)
	assert.False(t, a.IsSnoozing)
	assert.True(t, h.player.Powered)
	assert.Equal(t, snoozedAt.Add(SnoozeDuration), h.engine.Session().FadeStart)
	assert.Equal(t, FadeStartVolume, h.player.Volume)
}

func TestSnoozeWithoutActiveAlarm(t *testing.T) {
	h := newHarness(t, monday7am)
	_, ok := h.engine.SnoozeAlarm()
	assert.False(t, ok)
	assert.Empty(t, h.notifier.Messages)
}

func TestStopRestoresVolume(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.MaxVolume = 60

	h.engine.Check()
	h.clock.Advance(20 * time.Second)
	h.engine.Check()
	require.Greater(t, h.player.Volume, 12)

	ev, ok := h.engine.StopAlarm()
	require.True(t, ok)
	assert.Equal(t, EventStopped, ev.Type)
	assert.False(t, a.IsActive)
	assert.Equal(t, 12, h.player.Volume)
	assert.Equal(t, 12, h.settings.Volume)
	assert.Equal(t, MsgStopped, h.notifier.Last())
	assert.Equal(t, 0, h.settings.Commits)

	_, ok = h.engine.StopAlarm()
	assert.False(t, ok)
}

func TestStopWithinMinuteDoesNotRefire(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)

	h.engine.Check()
	h.clock.Advance(20 * time.Second)
	h.engine.StopAlarm()

	h.clock.Advance(10 * time.Second)
	assert.Empty(t, h.engine.Check())
	assert.Equal(t, 0, h.activeCount())

	// Next day it fires again.
	h.clock.Set(monday7am.AddDate(0, 0, 1))
	require.Len(t, h.engine.Check(), 1)
}

func TestCancelSnoozeCommits(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(4, 7, 0)

	h.engine.Check()
	h.engine.SnoozeAlarm()

	ev, ok := h.engine.CancelSnooze()
	require.True(t, ok)
	assert.Equal(t, EventSnoozeCancelled, ev.Type)
	assert.Equal(t, 4, ev.Slot)
	assert.False(t, a.IsSnoozing)
	assert.False(t, a.IsActive)
	assert.True(t, a.SnoozeStart.IsZero())
	assert.Equal(t, 1, h.settings.Commits)
	assert.Equal(t, MsgSnoozeCancelled, h.notifier.Last())
	assert.Equal(t, 12, h.player.Volume)

	_, ok = h.engine.SnoozingIndex()
	assert.False(t, ok)
	_, ok = h.engine.CancelSnooze()
	assert.False(t, ok)
}

func TestEditGuardSkipsSlot(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(3, 7, 0)
	h.guard.Begin(3)

	assert.Empty(t, h.engine.Check())
	assert.False(t, h.settings.Registry[3].IsActive)

	h.guard.End()
	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Slot)
}

func TestEditGuardOnlySkipsItsSlot(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.enable(1, 7, 0)
	h.guard.Begin(0)

	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Slot)
}

func TestOnceAlarmUnderEditMissesItsMinute(t *testing.T) {
	h := newHarness(t, monday7am)
	a := h.enable(0, 7, 0)
	a.Schedule = ScheduleOnce
	h.guard.Begin(0)

	for i := 0; i < 60; i++ {
		assert.Empty(t, h.engine.Check())
		h.clock.Advance(time.Second)
	}
	h.guard.End()
	assert.Empty(t, h.engine.Check())
	assert.True(t, a.Enabled)
}

func TestStationOutOfRangeFiresSilent(t *testing.T) {
	for _, station := range []int{2, 99, -1} {
		h := newHarness(t, monday7am)
		a := h.enable(0, 7, 0)
		a.Station = station

		events := h.engine.Check()

		require.Len(t, events, 1, "station %d", station)
		assert.True(t, events[0].Silent)
		assert.True(t, a.IsActive)
		assert.Empty(t, h.player.Connected)
		assert.Equal(t, FadeStartVolume, h.player.Volume)

		// Timeout still applies to a silent alarm.
		h.clock.Advance(TimeoutDuration)
		events = h.engine.Check()
		require.Len(t, events, 1)
		assert.Equal(t, EventTimeout, events[0].Type)
	}
}

func TestConnectErrorFiresSilent(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.player.ConnectError = errors.New("no route to host")

	events := h.engine.Check()
	require.Len(t, events, 1)
	assert.True(t, events[0].Silent)
	assert.True(t, h.settings.Registry[0].IsActive)
}

func TestAtMostOneActiveFromAnyState(t *testing.T) {
	for mask := 0; mask < 1<<MaxAlarms; mask++ {
		for _, at := range []time.Time{monday7am, monday7am.Add(3 * time.Hour)} {
			h := newHarness(t, at)
			for i := 0; i < MaxAlarms; i++ {
				a := h.enable(i, 7, 0)
				a.IsActive = mask&(1<<i) != 0
				a.IsSnoozing = i%2 == 0
				a.SnoozeStart = at.Add(-SnoozeDuration)
			}

			h.engine.Check()

			assert.LessOrEqual(t, h.activeCount(), 1, "mask=%05b at=%v", mask, at)
			for i, a := range h.settings.Registry {
				assert.False(t, a.IsActive && a.IsSnoozing, "slot %d active and snoozing", i)
			}
		}
	}
}

func TestStartAlarmManual(t *testing.T) {
	h := newHarness(t, monday7am.Add(2*time.Hour))

	_, err := h.engine.StartAlarm(MaxAlarms)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	ev, err := h.engine.StartAlarm(1)
	require.NoError(t, err)
	assert.Equal(t, ReasonManual, ev.Reason)
	assert.True(t, h.settings.Registry[1].IsActive)

	// Starting another slot hands over.
	_, err = h.engine.StartAlarm(3)
	require.NoError(t, err)
	assert.Equal(t, 1, h.activeCount())
	assert.True(t, h.settings.Registry[3].IsActive)
	assert.Equal(t, 12, h.engine.Session().UserVolumeBeforeAlarm)
}

func TestStartAlarmWithoutClock(t *testing.T) {
	h := newHarness(t, time.Unix(5, 0).UTC())
	h.clock.Synced = false

	_, err := h.engine.StartAlarm(0)
	assert.ErrorIs(t, err, ErrClockUnavailable)
	assert.False(t, h.settings.Registry[0].IsActive)
	assert.Empty(t, h.player.Volumes)

	// Nothing was stamped with the unsynced time, so the first synced
	// tick does not time anything out.
	h.clock.Set(monday7am.Add(3 * time.Hour))
	h.clock.Synced = true
	assert.Empty(t, h.engine.Check())
	assert.Empty(t, h.sleep.Armed)
}

func TestSnoozeWhileClockLost(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.engine.Check()
	h.clock.Advance(time.Minute)
	h.engine.Check()

	h.clock.Set(time.Unix(5, 0).UTC())
	h.clock.Synced = false
	_, ok := h.engine.SnoozeAlarm()
	require.True(t, ok)
	assert.Equal(t, monday7am.Add(time.Minute), h.settings.Registry[0].SnoozeStart)

	h.clock.Set(monday7am.Add(2 * time.Minute))
	h.clock.Synced = true
	assert.Empty(t, h.engine.Check(), "snooze still running")
	assert.True(t, h.settings.Registry[0].IsSnoozing)
}

func TestResetOfActiveSlotEndsSession(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)
	h.engine.Check()

	h.settings.Registry[0] = Default(0)
	h.clock.Advance(time.Second)
	h.engine.Check()

	_, active := h.engine.ActiveIndex()
	assert.False(t, active)
	assert.Equal(t, 12, h.player.Volume)
}

func TestCounts(t *testing.T) {
	h := newHarness(t, monday7am)
	h.enable(0, 7, 0)

	h.engine.Check()
	h.engine.SnoozeAlarm()
	h.clock.Advance(SnoozeDuration)
	h.engine.Check()
	h.engine.StopAlarm()

	c := h.engine.Counts()
	assert.Equal(t, 2, c.Fired)
	assert.Equal(t, 1, c.Snoozed)
	assert.Equal(t, 1, c.Stopped)
	assert.Equal(t, 0, c.Timeouts)
}
