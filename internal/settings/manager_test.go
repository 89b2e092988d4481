package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/eeprom"
)

var _ alarm.Settings = (*Manager)(nil)

func TestManagerCommitPersists(t *testing.T) {
	dev := eeprom.NewMemory(eeprom.DefaultSize)
	s := newStore(t, dev)
	cfg, _, err := s.Load()
	require.NoError(t, err)
	m := NewManager(s, cfg)

	m.Slots()[1].Enabled = true
	m.Slots()[1].Hour = 5
	m.Slots()[1].IsActive = true
	m.SetUserVolume(17)
	m.SetRadioPowerOn(false)
	require.NoError(t, m.Commit())

	dev.PowerCycle()
	got, report, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, PathCurrent, report.Path)
	assert.True(t, got.Alarms[1].Enabled)
	assert.Equal(t, 5, got.Alarms[1].Hour)
	assert.False(t, got.Alarms[1].IsActive)
	assert.Equal(t, 17, got.Volume)
	assert.False(t, got.RadioPowerOn)
}

func TestManagerClampsUserVolume(t *testing.T) {
	m := NewManager(NewStore(eeprom.NewMemory(eeprom.DefaultSize), nil), Defaults())

	m.SetUserVolume(200)
	assert.Equal(t, MaxVolume, m.UserVolume())
	m.SetUserVolume(-1)
	assert.Equal(t, MinVolume, m.UserVolume())
}

func TestManagerConfigIsCopy(t *testing.T) {
	m := NewManager(NewStore(eeprom.NewMemory(eeprom.DefaultSize), nil), Defaults())
	c := m.Config()
	c.Alarms[0].Hour = 12
	assert.Equal(t, 6, m.Slots()[0].Hour)
}
