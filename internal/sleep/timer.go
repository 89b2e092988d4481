// Package sleep implements the sleep timer: a countdown after which
// playback is powered down.
package sleep

import "time"

// Timer is a single countdown. Not safe for concurrent use.
type Timer struct {
	now      func() time.Time
	deadline time.Time
	minutes  int
	armed    bool
}

// New creates a disarmed timer. A nil now uses time.Now.
func New(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Arm starts a countdown of the given minutes, restarting any running one.
// Zero or negative minutes disarm the timer.
func (t *Timer) Arm(minutes int) {
	if minutes <= 0 {
		t.Cancel()
		return
	}
	t.minutes = minutes
	t.deadline = t.now().Add(time.Duration(minutes) * time.Minute)
	t.armed = true
}

// Cancel disarms the timer.
func (t *Timer) Cancel() {
	t.armed = false
	t.minutes = 0
	t.deadline = time.Time{}
}

// Active reports whether a countdown is running.
func (t *Timer) Active() bool { return t.armed }

// Minutes returns the length of the running countdown, or 0.
func (t *Timer) Minutes() int { return t.minutes }

// Remaining returns the time left, or 0 when disarmed.
func (t *Timer) Remaining() time.Duration {
	if !t.armed {
		return 0
	}
	d := t.deadline.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports true once when the deadline has passed, then disarms.
func (t *Timer) Expired() bool {
	if !t.armed || t.now().Before(t.deadline) {
		return false
	}
	t.Cancel()
	return true
}
