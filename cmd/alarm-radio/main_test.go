package main

import (
	"bytes"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/button"
	"github.com/sweeney/alarm-radio/internal/config"
	"github.com/sweeney/alarm-radio/internal/eeprom"
	"github.com/sweeney/alarm-radio/internal/gpio"
	"github.com/sweeney/alarm-radio/internal/mqtt"
	"github.com/sweeney/alarm-radio/internal/settings"
	"github.com/sweeney/alarm-radio/internal/stations"
	"github.com/sweeney/alarm-radio/internal/status"
	"github.com/sweeney/alarm-radio/internal/web"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

// 2026-01-05 is a Monday.
var monday7am = time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)

const tickStep = 100 * time.Millisecond

type harness struct {
	l      *loop
	clock  *alarm.FakeClock
	dev    *eeprom.Memory
	store  *settings.Store
	pub    *mqtt.FakePublisher
	reader *gpio.FakeReader
}

// newHarness builds a loop with slot 0 enabled daily at 07:00 on station 0
// and the clock one tick before it.
func newHarness(t *testing.T, samples ...bool) *harness {
	t.Helper()
	h := &harness{
		clock:  alarm.NewFakeClock(monday7am.Add(-tickStep)),
		dev:    eeprom.NewMemory(eeprom.DefaultSize),
		pub:    mqtt.NewFakePublisher(),
		reader: gpio.NewFakeReader(samples...),
	}
	h.store = settings.NewStore(h.dev, nil)
	require.NoError(t, h.store.Initialize())

	cfg := settings.Defaults()
	cfg.Alarms[0].Enabled = true
	cfg.Alarms[0].Hour = 7
	cfg.Alarms[0].Minute = 0
	cfg.Alarms[0].Schedule = alarm.ScheduleDaily
	cfg.Alarms[0].Label = "Work"
	require.NoError(t, h.store.Save(cfg))

	var reader gpio.Reader
	if len(samples) > 0 {
		reader = h.reader
	}
	now := func() time.Time { return h.clock.T }
	tracker := status.NewTracker(now(), status.BootInfo{ID: "test"}, status.Config{})
	h.l = newLoop(loopDeps{
		Clock:  h.clock,
		Stored: cfg,
		Store:  h.store,
		Stations: stations.New([]config.StationConfig{
			{Name: "Radio 4", URL: "http://r4.example/live"},
		}),
		Reader:    reader,
		Debounce:  tickStep,
		LongPress: 500 * time.Millisecond,
		Publisher: h.pub,
		Conn:      h.pub,
		Tracker:   tracker,
		Heartbeat: 0,
		Now:       now,
	}, nil)
	return h
}

// step advances the clock by one tick and runs it.
func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(tickStep)
		h.l.step(h.clock.T)
	}
}

func (h *harness) eventTypes() []alarm.EventType {
	var out []alarm.EventType
	for _, e := range h.pub.Events {
		out = append(out, e.Type)
	}
	return out
}

func TestStepFiresScheduledAlarm(t *testing.T) {
	h := newHarness(t)
	h.step(1)

	require.Equal(t, []alarm.EventType{alarm.EventFired}, h.eventTypes())
	assert.Equal(t, "Work", h.pub.Events[0].Label)
	assert.Equal(t, alarm.ReasonSchedule, h.pub.Events[0].Reason)

	connects := h.pub.CommandsFor(mqtt.ActionConnect)
	require.Len(t, connects, 1)
	assert.Equal(t, "http://r4.example/live", connects[0].URL)

	snap := h.l.tracker.Snapshot()
	assert.Equal(t, 0, snap.ActiveSlot)
	assert.True(t, snap.Alarms[0].Active)
	assert.True(t, snap.Player.Powered)
	assert.Equal(t, 1, snap.AlarmCounts.Fired)
}

func TestShortPressSnoozesRingingAlarm(t *testing.T) {
	// up, up (baseline), down, down (pressed), up, up (released)
	h := newHarness(t, false, false, true, true, false, false)
	h.step(6)

	assert.Equal(t, []alarm.EventType{alarm.EventFired, alarm.EventSnoozed}, h.eventTypes())
	snap := h.l.tracker.Snapshot()
	assert.Equal(t, -1, snap.ActiveSlot)
	assert.Equal(t, 0, snap.SnoozingSlot)
	assert.Equal(t, button.Counts{Short: 1}, snap.ButtonCounts)
	assert.False(t, snap.Player.Powered)
}

func TestShortPressWithoutAlarmDoesNothing(t *testing.T) {
	h := newHarness(t, false, false, true, true, false, false)
	h.clock.Set(monday7am.Add(time.Hour))
	h.step(6)

	assert.Empty(t, h.pub.Events)
	assert.Empty(t, h.pub.CommandsFor(mqtt.ActionPower))
	assert.Equal(t, 1, h.l.tracker.Snapshot().ButtonCounts.Short)
}

func hold(n int) []bool {
	samples := []bool{false, false}
	for i := 0; i < n; i++ {
		samples = append(samples, true)
	}
	return append(samples, false, false)
}

func TestLongPressStopsRingingAlarm(t *testing.T) {
	h := newHarness(t, hold(8)...)
	h.step(12)

	assert.Equal(t, []alarm.EventType{alarm.EventFired, alarm.EventStopped}, h.eventTypes())
	snap := h.l.tracker.Snapshot()
	assert.Equal(t, -1, snap.ActiveSlot)
	assert.Equal(t, button.Counts{Long: 1}, snap.ButtonCounts, "release after a long press is not a short press")
}

func TestLongPressCancelsSnoozeAndTogglesPower(t *testing.T) {
	h := newHarness(t)
	h.step(1)
	_, ok := h.l.engine.SnoozeAlarm()
	require.True(t, ok)

	h.l.handlePress(button.Press{Type: button.PressLong})

	assert.Equal(t, alarm.EventSnoozeCancelled, h.pub.Events[len(h.pub.Events)-1].Type)
	assert.True(t, h.l.player.IsPowered(), "snooze left the radio off, so the toggle powers it on")
	_, snoozing := h.l.engine.SnoozingIndex()
	assert.False(t, snoozing)
}

func TestLongPressIdleTogglesAndPersistsPower(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))
	h.l.setPower(true)
	h.l.sleep.Arm(30)

	h.l.handlePress(button.Press{Type: button.PressLong})

	assert.False(t, h.l.player.IsPowered())
	assert.False(t, h.l.sleep.Active(), "powering off cancels the sleep timer")

	h.dev.PowerCycle()
	cfg, _, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, cfg.RadioPowerOn)
}

func TestSleepTimerExpiryPowersOff(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))
	h.l.setPower(true)

	res := h.l.handleCommand(web.Command{Action: web.ActionSleep, Minutes: 1})
	require.True(t, res.OK, res.Error)

	h.step(5)
	assert.True(t, h.l.player.IsPowered())

	h.clock.Advance(time.Minute)
	h.step(1)
	assert.False(t, h.l.player.IsPowered())
	assert.False(t, h.l.settings.RadioPowerOn())

	powers := h.pub.CommandsFor(mqtt.ActionPower)
	require.NotEmpty(t, powers)
	assert.False(t, powers[len(powers)-1].On)
}

func TestGPIOReadErrorDoesNotStopEngine(t *testing.T) {
	h := newHarness(t, false)
	h.reader.ReadError = errors.New("gpio fault")
	h.step(1)

	assert.Equal(t, []alarm.EventType{alarm.EventFired}, h.eventTypes())
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))
	h.l.heartbeat = status.NewHeartbeat(time.Second, h.clock.T)

	h.step(5)
	assert.Empty(t, h.pub.SystemEvents)

	h.step(6)
	require.Len(t, h.pub.SystemEvents, 1)
	assert.Equal(t, "HEARTBEAT", h.pub.SystemEvents[0].Event)
	assert.Contains(t, string(h.pub.SystemPayloads[0]), `"event":"HEARTBEAT"`)
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))

	tests := []struct {
		name string
		cmd  web.Command
		ok   bool
	}{
		{"stop when idle", web.Command{Action: web.ActionStop}, false},
		{"snooze when idle", web.Command{Action: web.ActionSnooze}, false},
		{"start", web.Command{Action: web.ActionStart, Slot: intPtr(2)}, true},
		{"snooze", web.Command{Action: web.ActionSnooze}, true},
		{"cancel snooze", web.Command{Action: web.ActionCancelSnooze}, true},
		{"cancel snooze again", web.Command{Action: web.ActionCancelSnooze}, false},
		{"confirm bad time", web.Command{Action: web.ActionConfirmTime, Slot: intPtr(1), Hour: 24}, false},
		{"confirm time", web.Command{Action: web.ActionConfirmTime, Slot: intPtr(1), Hour: 6, Minute: 45}, true},
		{"enable", web.Command{Action: web.ActionSetEnabled, Slot: intPtr(1), Enabled: true}, true},
		{"reset", web.Command{Action: web.ActionReset, Slot: intPtr(3)}, true},
		{"missing slot", web.Command{Action: web.ActionReset}, false},
		{"unknown", web.Command{Action: "dance"}, false},
	}
	for _, tt := range tests {
		res := h.l.handleCommand(tt.cmd)
		assert.Equal(t, tt.ok, res.OK, "%s: %+v", tt.name, res)
	}

	h.dev.PowerCycle()
	cfg, _, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Alarms[1].Hour)
	assert.Equal(t, 45, cfg.Alarms[1].Minute)
	assert.True(t, cfg.Alarms[1].Enabled)

	assert.Equal(t,
		[]alarm.EventType{alarm.EventFired, alarm.EventSnoozed, alarm.EventSnoozeCancelled},
		h.eventTypes())
}

func TestSlotFieldCommands(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))

	tests := []struct {
		name string
		cmd  web.Command
		ok   bool
	}{
		{"schedule", web.Command{Action: web.ActionSetSchedule, Slot: intPtr(2), Schedule: "weekdays"}, true},
		{"bad schedule", web.Command{Action: web.ActionSetSchedule, Slot: intPtr(2), Schedule: "sometimes"}, false},
		{"max volume", web.Command{Action: web.ActionSetMaxVolume, Slot: intPtr(2), MaxVolume: 40}, true},
		{"max volume too loud", web.Command{Action: web.ActionSetMaxVolume, Slot: intPtr(2), MaxVolume: 81}, false},
		{"auto-off", web.Command{Action: web.ActionSetAutoOff, Slot: intPtr(2), Minutes: 30}, true},
		{"auto-off odd length", web.Command{Action: web.ActionSetAutoOff, Slot: intPtr(2), Minutes: 45}, false},
		{"station", web.Command{Action: web.ActionSetStation, Slot: intPtr(2), Station: 3}, true},
		{"negative station", web.Command{Action: web.ActionSetStation, Slot: intPtr(2), Station: -1}, false},
		{"label", web.Command{Action: web.ActionSetLabel, Slot: intPtr(2), Label: "Gym on Tuesdays and Fridays"}, true},
		{"label without slot", web.Command{Action: web.ActionSetLabel, Label: "x"}, false},
	}
	for _, tt := range tests {
		res := h.l.handleCommand(tt.cmd)
		assert.Equal(t, tt.ok, res.OK, "%s: %+v", tt.name, res)
	}

	h.dev.PowerCycle()
	cfg, report, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, report.Repairs)
	a := cfg.Alarms[2]
	assert.Equal(t, alarm.ScheduleWeekdays, a.Schedule)
	assert.Equal(t, 40, a.MaxVolume)
	assert.Equal(t, alarm.AutoOff30, a.AutoOff)
	assert.Equal(t, 3, a.Station)
	assert.Equal(t, "Gym on Tuesdays ", a.Label)
}

func TestStartCommandWaitsForClock(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(time.Unix(5, 0).UTC())
	h.clock.Synced = false

	res := h.l.handleCommand(web.Command{Action: web.ActionStart, Slot: intPtr(1)})
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "clock not synced")
	assert.Empty(t, h.pub.Events)
}

func TestBeginEditBlocksFiring(t *testing.T) {
	h := newHarness(t)

	res := h.l.handleCommand(web.Command{Action: web.ActionBeginEdit, Slot: intPtr(0)})
	require.True(t, res.OK)
	h.step(1)
	assert.Empty(t, h.pub.Events)
	assert.Equal(t, 0, h.l.tracker.Snapshot().EditingSlot)

	res = h.l.handleCommand(web.Command{Action: web.ActionCancelEdit})
	require.True(t, res.OK)
	h.step(1)
	assert.Equal(t, []alarm.EventType{alarm.EventFired}, h.eventTypes())
}

func intPtr(i int) *int { return &i }

// runRunLoop drives runLoop with ticks, then commands, then a signal.
func runRunLoop(t *testing.T, h *harness, nTicks int, cmds []web.Command, signal os.Signal) ([]web.Result, error) {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	cmdCh := make(chan web.Request)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(h.l, tick, sig, cmdCh)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- monday7am
	}
	var results []web.Result
	for _, c := range cmds {
		req := web.NewRequest(c)
		cmdCh <- req
		results = append(results, <-req.Reply)
	}
	sig <- signal

	return results, <-errCh
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am)

	results, err := runRunLoop(t, h, 2, []web.Command{{Action: web.ActionStop}}, syscall.SIGTERM)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].OK, results[0].Error)
	assert.Equal(t, []alarm.EventType{alarm.EventFired, alarm.EventStopped}, h.eventTypes())

	require.Len(t, h.pub.SystemEvents, 1)
	se := h.pub.SystemEvents[0]
	assert.Equal(t, "SHUTDOWN", se.Event)
	assert.Equal(t, "SIGTERM", se.Reason)
	assert.True(t, se.Retained)
	assert.Contains(t, string(h.pub.SystemPayloads[0]), `"reason":"SIGTERM"`)
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am.Add(time.Hour))

	_, err := runRunLoop(t, h, 1, nil, syscall.SIGINT)
	require.NoError(t, err)
	require.Len(t, h.pub.SystemEvents, 1)
	assert.Equal(t, "SIGINT", h.pub.SystemEvents[0].Reason)
}

func TestRunLoopPublishError(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday7am)
	h.pub.PublishError = errors.New("broker down")

	_, err := runRunLoop(t, h, 1, nil, syscall.SIGTERM)
	require.NoError(t, err)
	assert.Empty(t, h.pub.Events)
	assert.Equal(t, 0, h.l.tracker.Snapshot().ActiveSlot, "alarm still fires when publishing fails")
}

func TestPrintSettings(t *testing.T) {
	cfg := settings.Defaults()
	cfg.WiFiSSID = "home"
	cfg.WiFiPassword = "hunter22"
	cfg.Alarms[2].Enabled = true
	cfg.Alarms[2].Hour = 6
	cfg.Alarms[2].Minute = 30

	var buf bytes.Buffer
	printSettings(&buf, cfg, settings.LoadReport{Path: settings.PathCurrent, StoredVersion: settings.CurrentVersion})
	out := buf.String()

	assert.Contains(t, out, "settings: current (stored version 6")
	assert.Contains(t, out, `wifi_ssid="home" wifi_password=set weather_api_key=unset`)
	assert.Contains(t, out, "alarm 2: ON  06:30")
	assert.NotContains(t, out, "hunter22")
}
