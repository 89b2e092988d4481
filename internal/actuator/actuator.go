// Package actuator drives the playback hardware and the display by
// publishing commands over MQTT. It keeps a local view of the player state
// so the alarm engine can query it without a round trip.
package actuator

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/mqtt"
)

// CommandPublisher sends commands to the hardware.
type CommandPublisher interface {
	PublishCommand(cmd mqtt.Command) error
}

// PlayerState is a copy of the local player view.
type PlayerState struct {
	Powered bool
	Volume  int
	URL     string
	Playing bool
}

// Player implements alarm.Player. Not safe for concurrent use.
type Player struct {
	pub   CommandPublisher
	now   func() time.Time
	log   *zap.Logger
	state PlayerState
}

var _ alarm.Player = (*Player)(nil)

// NewPlayer creates a player whose power starts at powered. Nothing is
// published until the first command.
func NewPlayer(pub CommandPublisher, powered bool, now func() time.Time, log *zap.Logger) *Player {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{
		pub:   pub,
		now:   now,
		log:   log.Named("player"),
		state: PlayerState{Powered: powered, Volume: -1},
	}
}

func (p *Player) send(cmd mqtt.Command) error {
	cmd.Timestamp = p.now()
	cmd.Target = mqtt.TargetPlayer
	if err := p.pub.PublishCommand(cmd); err != nil {
		p.log.Warn("player command failed", zap.String("action", cmd.Action), zap.Error(err))
		return err
	}
	return nil
}

// SetVolume sets the output volume, clamped to 0..80.
func (p *Player) SetVolume(level int) {
	if level < alarm.MinVolume {
		level = alarm.MinVolume
	}
	if level > alarm.MaxVolume {
		level = alarm.MaxVolume
	}
	p.state.Volume = level
	p.send(mqtt.Command{Action: mqtt.ActionVolume, Volume: level})
}

// Connect starts streaming url.
func (p *Player) Connect(url string) error {
	if url == "" {
		return errors.New("actuator: empty stream url")
	}
	if err := p.send(mqtt.Command{Action: mqtt.ActionConnect, URL: url}); err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	p.state.URL = url
	p.state.Playing = true
	p.log.Info("stream connected", zap.String("url", url))
	return nil
}

// Stop stops playback.
func (p *Player) Stop() {
	p.state.Playing = false
	p.send(mqtt.Command{Action: mqtt.ActionStop})
}

// IsPowered reports the radio power flag.
func (p *Player) IsPowered() bool { return p.state.Powered }

// SetPowered switches the radio on or off. Powering off stops playback.
func (p *Player) SetPowered(on bool) {
	if on == p.state.Powered {
		return
	}
	p.state.Powered = on
	if !on {
		p.state.Playing = false
	}
	p.send(mqtt.Command{Action: mqtt.ActionPower, On: on})
	p.log.Info("radio power", zap.Bool("on", on))
}

// State returns a copy of the local player view.
func (p *Player) State() PlayerState { return p.state }

// Display implements alarm.Notifier.
type Display struct {
	pub  CommandPublisher
	now  func() time.Time
	log  *zap.Logger
	last string
}

var _ alarm.Notifier = (*Display)(nil)

// NewDisplay creates a display sink.
func NewDisplay(pub CommandPublisher, now func() time.Time, log *zap.Logger) *Display {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Display{pub: pub, now: now, log: log.Named("display")}
}

// ShowMessage shows text for d.
func (d *Display) ShowMessage(text string, dur time.Duration) {
	d.last = text
	err := d.pub.PublishCommand(mqtt.Command{
		Timestamp: d.now(),
		Target:    mqtt.TargetDisplay,
		Action:    mqtt.ActionMessage,
		Text:      text,
		Duration:  dur,
	})
	if err != nil {
		d.log.Warn("display message failed", zap.String("text", text), zap.Error(err))
	}
}

// Last returns the last message shown.
func (d *Display) Last() string { return d.last }
