package alarm

import "time"

// minSyncedYear is the earliest year accepted as a synced wall clock.
// An unsynced board boots with its clock near the Unix epoch.
const minSyncedYear = 2016

// IsAlarmTime reports whether a is due at t: hour and minute match and the
// schedule admits t's weekday. It does not look at Enabled or runtime state.
func IsAlarmTime(a Alarm, t time.Time) bool {
	if t.Hour() != a.Hour || t.Minute() != a.Minute {
		return false
	}

	wd := t.Weekday()
	switch a.Schedule {
	case ScheduleDaily:
		return true
	case ScheduleWeekdays:
		return wd >= time.Monday && wd <= time.Friday
	case ScheduleWeekends:
		return wd == time.Saturday || wd == time.Sunday
	case ScheduleOnce:
		// The engine disables the slot when it fires.
		return true
	}
	return false
}

// SystemClock reads the host clock in the configured location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the local time, or false while the clock is not synced.
func (c SystemClock) Now() (time.Time, bool) {
	t := time.Now()
	if c.Location != nil {
		t = t.In(c.Location)
	}
	if t.Year() < minSyncedYear {
		return t, false
	}
	return t, true
}

// FakeClock is a test double with a settable time.
type FakeClock struct {
	T      time.Time
	Synced bool
}

// NewFakeClock returns a synced FakeClock at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{T: t, Synced: true}
}

// Now returns the scripted time.
func (c *FakeClock) Now() (time.Time, bool) {
	return c.T, c.Synced
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.T = t
}
