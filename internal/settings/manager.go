package settings

import "github.com/sweeney/alarm-radio/internal/alarm"

// Manager owns the live configuration and persists it through a Store.
// It implements alarm.Settings. Not safe for concurrent use; the main
// loop owns it.
type Manager struct {
	store *Store
	cfg   Config
}

// NewManager wraps a loaded configuration.
func NewManager(store *Store, cfg Config) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Slots returns the live alarm registry.
func (m *Manager) Slots() *alarm.Registry { return &m.cfg.Alarms }

// UserVolume returns the user's listening volume.
func (m *Manager) UserVolume() int { return m.cfg.Volume }

// SetUserVolume sets the listening volume, clamped to range.
func (m *Manager) SetUserVolume(v int) {
	if v < MinVolume {
		v = MinVolume
	}
	if v > MaxVolume {
		v = MaxVolume
	}
	m.cfg.Volume = v
}

// RadioPowerOn reports the persisted power flag.
func (m *Manager) RadioPowerOn() bool { return m.cfg.RadioPowerOn }

// SetRadioPowerOn sets the persisted power flag. Call Commit to save it.
func (m *Manager) SetRadioPowerOn(on bool) { m.cfg.RadioPowerOn = on }

// CurrentStream returns the last selected stream index.
func (m *Manager) CurrentStream() int { return m.cfg.CurrentStream }

// Config returns a copy of the live configuration.
func (m *Manager) Config() Config { return m.cfg }

// Commit persists the live configuration.
func (m *Manager) Commit() error {
	return m.store.Save(m.cfg)
}
