package status

import "time"

// Heartbeat decides when the periodic HEARTBEAT system event is due.
type Heartbeat struct {
	interval time.Duration
	last     time.Time
}

// NewHeartbeat starts the interval at start. A non-positive interval
// disables heartbeats.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{interval: interval, last: start}
}

// Due reports whether a heartbeat should be sent at now, and if so
// restarts the interval.
func (h *Heartbeat) Due(now time.Time) bool {
	if h.interval <= 0 || now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
