package alarm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEditor() (*Editor, *MemSettings, *EditGuard) {
	s := NewMemSettings(10)
	g := &EditGuard{}
	return NewEditor(s, g, nil), s, g
}

func TestEditorTimeEdit(t *testing.T) {
	ed, s, g := newTestEditor()

	require.NoError(t, ed.BeginTimeEdit(2))
	assert.True(t, g.Holds(2))
	assert.Equal(t, 0, s.Commits)

	require.NoError(t, ed.ConfirmTime(2, 5, 45))
	assert.False(t, g.Holds(2))
	assert.Equal(t, 5, s.Registry[2].Hour)
	assert.Equal(t, 45, s.Registry[2].Minute)
	assert.Equal(t, 1, s.Commits)
}

func TestEditorRejectsInvalidValues(t *testing.T) {
	ed, s, g := newTestEditor()
	g.Begin(1)

	tests := []struct {
		name string
		err  error
		call func() error
	}{
		{"slot", ErrInvalidSlot, func() error { return ed.SetEnabled(5, true) }},
		{"begin slot", ErrInvalidSlot, func() error { return ed.BeginTimeEdit(-1) }},
		{"hour", ErrInvalidTime, func() error { return ed.ConfirmTime(1, 24, 0) }},
		{"minute", ErrInvalidTime, func() error { return ed.ConfirmTime(1, 7, 60) }},
		{"volume low", ErrInvalidVolume, func() error { return ed.SetMaxVolume(1, 0) }},
		{"volume high", ErrInvalidVolume, func() error { return ed.SetMaxVolume(1, 81) }},
		{"schedule", ErrInvalidSchedule, func() error { return ed.SetSchedule(1, Schedule(4)) }},
		{"auto-off", ErrInvalidAutoOff, func() error { return ed.SetAutoOff(1, AutoOff(6)) }},
		{"station", ErrInvalidStation, func() error { return ed.SetStation(1, -3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.err)
		})
	}

	assert.Equal(t, DefaultRegistry(), s.Registry)
	assert.Equal(t, 0, s.Commits)
	assert.True(t, g.Holds(1), "a rejected confirm keeps the guard")
}

func TestEditorSetters(t *testing.T) {
	ed, s, _ := newTestEditor()

	require.NoError(t, ed.SetEnabled(0, true))
	require.NoError(t, ed.SetSchedule(0, ScheduleWeekends))
	require.NoError(t, ed.SetMaxVolume(0, 80))
	require.NoError(t, ed.SetAutoOff(0, AutoOff90))
	require.NoError(t, ed.SetStation(0, 42))
	require.NoError(t, ed.SetLabel(0, "Weekend lie-in, but not too long"))

	a := s.Registry[0]
	assert.True(t, a.Enabled)
	assert.Equal(t, ScheduleWeekends, a.Schedule)
	assert.Equal(t, 80, a.MaxVolume)
	assert.Equal(t, AutoOff90, a.AutoOff)
	assert.Equal(t, 42, a.Station)
	assert.Equal(t, "Weekend lie-in, ", a.Label)
	assert.Equal(t, 6, s.Commits)
}

func TestEditorReset(t *testing.T) {
	ed, s, g := newTestEditor()
	s.Registry[3].Enabled = true
	s.Registry[3].Hour = 9
	s.Registry[3].Label = "Gym"
	g.Begin(3)

	require.NoError(t, ed.Reset(3))
	assert.Equal(t, Default(3), s.Registry[3])
	assert.Equal(t, "Alarm 4", s.Registry[3].Label)
	assert.False(t, g.Holds(3))
	assert.Equal(t, 1, s.Commits)
}

func TestEditorCommitError(t *testing.T) {
	ed, s, _ := newTestEditor()
	s.CommitError = errors.New("eeprom busy")

	err := ed.SetEnabled(0, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eeprom busy")
}

func TestTruncateLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Alarm 1", "Alarm 1"},
		{"exactly sixteen!", "exactly sixteen!"},
		{"seventeen chars!!", "seventeen chars!"},
		{"Réveil du matin!!", "Réveil du matin"},
	}
	for _, tt := range tests {
		got := TruncateLabel(tt.in)
		assert.Equal(t, tt.want, got, "in=%q", tt.in)
		assert.LessOrEqual(t, len(got), MaxLabelLen)
	}
}

func TestAlarmValidate(t *testing.T) {
	base := Default(0)
	tests := []struct {
		name string
		mod  func(*Alarm)
		want string
	}{
		{"defaults", func(*Alarm) {}, ""},
		{"hour", func(a *Alarm) { a.Hour = 99 }, "hour"},
		{"negative minute", func(a *Alarm) { a.Minute = -1 }, "minute"},
		{"volume", func(a *Alarm) { a.MaxVolume = 0 }, "max_volume"},
		{"schedule", func(a *Alarm) { a.Schedule = 4 }, "schedule"},
		{"auto-off", func(a *Alarm) { a.AutoOff = -1 }, "auto_off"},
		{"station not validated", func(a *Alarm) { a.Station = 1000 }, ""},
	}
	for _, tt := range tests {
		a := base
		tt.mod(&a)
		assert.Equal(t, tt.want, a.Validate(), tt.name)
	}
}

func TestAutoOffMinutes(t *testing.T) {
	want := map[AutoOff]int{
		AutoOffNone: 0, AutoOff5: 5, AutoOff15: 15, AutoOff30: 30, AutoOff60: 60, AutoOff90: 90, AutoOff(7): 0,
	}
	for a, m := range want {
		assert.Equal(t, m, a.Minutes(), a.String())
	}
}

func TestParseSchedule(t *testing.T) {
	for _, s := range []Schedule{ScheduleDaily, ScheduleWeekdays, ScheduleWeekends, ScheduleOnce} {
		got, err := ParseSchedule(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseSchedule("weekends")
	require.NoError(t, err)
	assert.Equal(t, ScheduleWeekends, got)

	_, err = ParseSchedule("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestAutoOffFor(t *testing.T) {
	tests := []struct {
		minutes int
		want    AutoOff
	}{
		{0, AutoOffNone},
		{5, AutoOff5},
		{15, AutoOff15},
		{30, AutoOff30},
		{60, AutoOff60},
		{90, AutoOff90},
	}
	for _, tt := range tests {
		got, err := AutoOffFor(tt.minutes)
		require.NoError(t, err, "%d min", tt.minutes)
		assert.Equal(t, tt.want, got)
	}

	_, err := AutoOffFor(45)
	assert.ErrorIs(t, err, ErrInvalidAutoOff)
}
