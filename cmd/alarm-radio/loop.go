package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/actuator"
	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/button"
	"github.com/sweeney/alarm-radio/internal/gpio"
	"github.com/sweeney/alarm-radio/internal/metrics"
	"github.com/sweeney/alarm-radio/internal/mqtt"
	"github.com/sweeney/alarm-radio/internal/settings"
	"github.com/sweeney/alarm-radio/internal/sleep"
	"github.com/sweeney/alarm-radio/internal/stations"
	"github.com/sweeney/alarm-radio/internal/status"
	"github.com/sweeney/alarm-radio/internal/web"
)

// loop is everything owned by the main goroutine. Only the edit guard is
// shared with other goroutines.
type loop struct {
	clock     alarm.Clock
	engine    *alarm.Engine
	editor    *alarm.Editor
	settings  *settings.Manager
	store     *settings.Store
	player    *actuator.Player
	sleep     *sleep.Timer
	guard     *alarm.EditGuard
	stations  *stations.Directory
	reader    gpio.Reader // nil when the button is disabled
	detector  *button.Detector
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	heartbeat *status.Heartbeat
	now       func() time.Time
	log       *zap.Logger
}

// errNothingToDo is returned for commands that found no matching state.
var errNothingToDo = errors.New("nothing to do")

func runLoop(l *loop, tick <-chan time.Time, sig <-chan os.Signal, cmds <-chan web.Request) error {
	l.refreshStatus()

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case req := <-cmds:
			res := l.handleCommand(req.Command)
			req.Reply <- res
			l.refreshStatus()

		case t := <-tick:
			l.step(t)
		}
	}
}

// step runs one tick: button, engine, sleep timer, heartbeat and status.
func (l *loop) step(t time.Time) {
	start := l.now()

	if l.reader != nil {
		pressed, err := l.reader.Read()
		if err != nil {
			l.log.Warn("gpio read error", zap.Error(err))
		} else if p := l.detector.Process(button.Input{Pressed: pressed, Time: t}); p != nil {
			l.handlePress(*p)
		}
	}

	for _, ev := range l.engine.Check() {
		l.publish(ev)
	}

	if l.sleep.Expired() {
		l.log.Info("sleep timer expired, radio off")
		l.setPower(false)
	}

	l.refreshStatus()

	if l.heartbeat.Due(t) {
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		snap := l.tracker.Snapshot()
		l.log.Info("heartbeat",
			zap.Duration("uptime", snap.Uptime()),
			zap.Int("fired", snap.AlarmCounts.Fired),
			zap.Int("presses", snap.ButtonCounts.Short+snap.ButtonCounts.Long),
		)
		l.publishSystem(mqtt.SystemEvent{
			Timestamp:  t,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		})
	}

	l.metrics.TickDuration.Observe(l.now().Sub(start).Seconds())
}

// handlePress maps front-panel gestures to engine operations. A short
// press only snoozes a ringing alarm; a long press stops it, or cancels a
// snooze, or toggles the radio.
func (l *loop) handlePress(p button.Press) {
	l.log.Debug("button press", zap.String("type", string(p.Type)), zap.Duration("held", p.Held))

	switch p.Type {
	case button.PressShort:
		if ev, ok := l.engine.SnoozeAlarm(); ok {
			l.publish(ev)
		}
		l.countCommand("button_short", nil)

	case button.PressLong:
		if ev, ok := l.engine.StopAlarm(); ok {
			l.publish(ev)
			l.countCommand("button_long", nil)
			return
		}
		if ev, ok := l.engine.CancelSnooze(); ok {
			l.publish(ev)
		}
		l.setPower(!l.player.IsPowered())
		l.countCommand("button_long", nil)
	}
}

// setPower switches the radio and persists the power flag. Powering on
// resumes the current stream at the user's volume; powering off cancels
// the sleep timer.
func (l *loop) setPower(on bool) {
	l.player.SetPowered(on)
	if on {
		l.player.SetVolume(l.settings.UserVolume())
		if st, ok := l.stations.Lookup(l.settings.CurrentStream()); ok {
			if err := l.player.Connect(st.URL); err != nil {
				l.log.Warn("resume stream failed", zap.String("station", st.Name), zap.Error(err))
			}
		}
	} else {
		l.sleep.Cancel()
	}

	if l.settings.RadioPowerOn() == on {
		return
	}
	l.settings.SetRadioPowerOn(on)
	if err := l.settings.Commit(); err != nil {
		l.log.Error("commit power flag failed", zap.Error(err))
	}
}

func (l *loop) handleCommand(c web.Command) web.Result {
	res, err := l.dispatch(c)
	l.countCommand(c.Action, err)
	if err != nil {
		l.log.Info("command rejected", zap.String("action", c.Action), zap.Error(err))
		return web.Result{Error: err.Error()}
	}
	l.log.Info("command", zap.String("action", c.Action), zap.Int("slot", c.SlotIndex()))
	return web.Result{OK: true, Message: res}
}

func (l *loop) dispatch(c web.Command) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	slot := c.SlotIndex()

	switch c.Action {
	case web.ActionStop:
		ev, ok := l.engine.StopAlarm()
		if !ok {
			return "", fmt.Errorf("stop: no alarm active: %w", errNothingToDo)
		}
		l.publish(ev)
		return alarm.MsgStopped, nil

	case web.ActionSnooze:
		ev, ok := l.engine.SnoozeAlarm()
		if !ok {
			return "", fmt.Errorf("snooze: no alarm active: %w", errNothingToDo)
		}
		l.publish(ev)
		return alarm.MsgSnoozed, nil

	case web.ActionCancelSnooze:
		ev, ok := l.engine.CancelSnooze()
		if !ok {
			return "", fmt.Errorf("cancel_snooze: no alarm snoozing: %w", errNothingToDo)
		}
		l.publish(ev)
		return alarm.MsgSnoozeCancelled, nil

	case web.ActionStart:
		ev, err := l.engine.StartAlarm(slot)
		if err != nil {
			return "", err
		}
		l.publish(ev)
		return fmt.Sprintf("alarm %d started", slot), nil

	case web.ActionBeginEdit:
		if err := l.editor.BeginTimeEdit(slot); err != nil {
			return "", err
		}
		return "editing", nil

	case web.ActionCancelEdit:
		l.editor.CancelTimeEdit()
		return "edit cancelled", nil

	case web.ActionConfirmTime:
		if err := l.editor.ConfirmTime(slot, c.Hour, c.Minute); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d set to %02d:%02d", slot, c.Hour, c.Minute), nil

	case web.ActionSetEnabled:
		if err := l.editor.SetEnabled(slot, c.Enabled); err != nil {
			return "", err
		}
		if c.Enabled {
			return fmt.Sprintf("alarm %d on", slot), nil
		}
		return fmt.Sprintf("alarm %d off", slot), nil

	case web.ActionReset:
		if err := l.editor.Reset(slot); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d reset", slot), nil

	case web.ActionSetSchedule:
		sched, err := alarm.ParseSchedule(c.Schedule)
		if err != nil {
			return "", err
		}
		if err := l.editor.SetSchedule(slot, sched); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d %s", slot, sched), nil

	case web.ActionSetMaxVolume:
		if err := l.editor.SetMaxVolume(slot, c.MaxVolume); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d max volume %d", slot, c.MaxVolume), nil

	case web.ActionSetAutoOff:
		code, err := alarm.AutoOffFor(c.Minutes)
		if err != nil {
			return "", err
		}
		if err := l.editor.SetAutoOff(slot, code); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d auto-off %s", slot, code), nil

	case web.ActionSetStation:
		if err := l.editor.SetStation(slot, c.Station); err != nil {
			return "", err
		}
		if _, ok := l.stations.Lookup(c.Station); !ok {
			l.log.Warn("alarm station not in directory", zap.Int("slot", slot), zap.Int("station", c.Station))
		}
		return fmt.Sprintf("alarm %d station %d", slot, c.Station), nil

	case web.ActionSetLabel:
		if err := l.editor.SetLabel(slot, c.Label); err != nil {
			return "", err
		}
		return fmt.Sprintf("alarm %d label %q", slot, alarm.TruncateLabel(c.Label)), nil

	case web.ActionSleep:
		l.sleep.Arm(c.Minutes)
		if !l.sleep.Active() {
			return "sleep timer off", nil
		}
		return fmt.Sprintf("sleep in %d min", c.Minutes), nil
	}
	return "", web.ErrUnknownAction
}

func (l *loop) publish(ev alarm.Event) {
	l.log.Info("alarm event",
		zap.String("event", string(ev.Type)),
		zap.Int("slot", ev.Slot),
		zap.String("reason", ev.Reason),
	)
	err := l.publisher.Publish(ev)
	if err != nil {
		l.log.Warn("publish error", zap.Error(err))
	}
	l.metrics.Published.WithLabelValues("alarm", metrics.Result(err)).Inc()
}

func (l *loop) publishSystem(ev mqtt.SystemEvent) {
	err := l.publisher.PublishSystem(ev)
	if err != nil {
		l.log.Warn("system event publish failed", zap.String("event", ev.Event), zap.Error(err))
	} else {
		l.log.Info("published system event", zap.String("event", ev.Event))
	}
	l.metrics.Published.WithLabelValues("system", metrics.Result(err)).Inc()
}

func (l *loop) countCommand(action string, err error) {
	l.metrics.Commands.WithLabelValues(action, metrics.Result(err)).Inc()
}

// refreshStatus copies the live state into the tracker.
func (l *loop) refreshStatus() {
	_, synced := l.clock.Now()
	session := l.engine.Session()
	snoozing, _ := l.engine.SnoozingIndex()
	editing, _ := l.guard.Slot()
	ps := l.player.State()

	l.tracker.Update(status.Device{
		ClockSynced:  synced,
		Alarms:       status.AlarmsFrom(l.settings.Slots()),
		ActiveSlot:   session.ActiveIndex,
		SnoozingSlot: snoozing,
		EditingSlot:  editing,
		FadeVolume:   session.FadeVolume,
		UserVolume:   l.settings.UserVolume(),
		Player: status.PlayerStatus{
			Powered: ps.Powered,
			Volume:  ps.Volume,
			Playing: ps.Playing,
			URL:     ps.URL,
		},
		Sleep: status.SleepStatus{
			Active:    l.sleep.Active(),
			Minutes:   l.sleep.Minutes(),
			Remaining: l.sleep.Remaining(),
		},
		AlarmCounts:  l.engine.Counts(),
		ButtonCounts: l.detector.CountsSnapshot(),
		Store:        l.store.Stats(),
	})
	if l.conn != nil {
		l.tracker.SetMQTTConnected(l.conn.IsConnected())
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.log.Info("shutting down", zap.String("signal", s.String()))
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	l.refreshStatus()
	snap := l.tracker.Snapshot()
	l.publishSystem(mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	})
}
