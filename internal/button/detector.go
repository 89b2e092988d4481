package button

import "time"

// Detector debounces the button level and classifies presses.
//
// A long press is reported once, while the button is still held, as soon
// as it has been down for the long-press time. A short press is reported
// on release, only if no long press was reported for that hold.
type Detector struct {
	debounce  time.Duration
	longPress time.Duration

	stable       State
	pending      State
	pendingSince time.Time
	baselined    bool

	downSince    time.Time
	longReported bool

	counts Counts
}

// NewDetector creates a detector. A non-positive longPress uses
// DefaultLongPress.
func NewDetector(debounce, longPress time.Duration) *Detector {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	return &Detector{debounce: debounce, longPress: longPress}
}

// Process takes a new sample and returns at most one press.
// No presses are reported until a baseline is established, so a button
// held at boot is ignored until it is released and pressed again.
func (d *Detector) Process(in Input) *Press {
	level := stateFor(in.Pressed)

	if !d.baselined {
		d.observeBaseline(level, in.Time)
		return nil
	}

	var p *Press
	if changed, at := d.debounceLevel(level, in.Time); changed {
		switch d.stable {
		case StateDown:
			d.downSince = at
			d.longReported = false
		case StateUp:
			if !d.longReported {
				p = &Press{Timestamp: in.Time, Type: PressShort, Held: at.Sub(d.downSince)}
			}
			d.longReported = false
		}
	}

	if d.stable == StateDown && !d.longReported && in.Time.Sub(d.downSince) >= d.longPress {
		d.longReported = true
		p = &Press{Timestamp: in.Time, Type: PressLong, Held: in.Time.Sub(d.downSince)}
	}

	if p != nil {
		switch p.Type {
		case PressShort:
			d.counts.Short++
		case PressLong:
			d.counts.Long++
		}
	}
	return p
}

func (d *Detector) observeBaseline(level State, now time.Time) {
	if d.pending == "" || d.pending != level {
		d.pending = level
		d.pendingSince = now
		return
	}
	if now.Sub(d.pendingSince) >= d.debounce {
		d.stable = level
		d.pending = ""
		// Only an UP baseline arms the detector.
		d.baselined = level == StateUp
		if !d.baselined {
			d.stable = ""
		}
	}
}

// debounceLevel applies a new sample to the stable level. It reports
// whether the stable level changed and when the change was first seen.
func (d *Detector) debounceLevel(level State, now time.Time) (bool, time.Time) {
	if level == d.stable {
		d.pending = ""
		return false, time.Time{}
	}
	if d.pending != level {
		d.pending = level
		d.pendingSince = now
		return false, time.Time{}
	}
	if now.Sub(d.pendingSince) >= d.debounce {
		d.stable = level
		d.pending = ""
		return true, d.pendingSince
	}
	return false, time.Time{}
}

func stateFor(pressed bool) State {
	if pressed {
		return StateDown
	}
	return StateUp
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the debounced level.
func (d *Detector) CurrentState() State {
	return d.stable
}

// CountsSnapshot returns press counts since startup.
func (d *Detector) CountsSnapshot() Counts {
	return d.counts
}
