// Package config loads the daemon's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"github.com/sweeney/alarm-radio/internal/eeprom"
)

const (
	defaultTickMs       = 100
	defaultEEPROMPath   = "/var/lib/alarm-radio/eeprom.bin"
	defaultTimezone     = "Local"
	defaultChip         = "gpiochip0"
	defaultButtonPin    = 17
	defaultDebounceMs   = 50
	defaultLongPressMs  = 3000
	defaultBroker       = "tcp://192.168.1.200:1883"
	defaultClientID     = "alarm-radio"
	defaultTopicPrefix  = "alarm-radio"
	defaultWSBroker     = "=broker"
	defaultHeartbeatSec = 900
	defaultHTTPAddr     = ":80"
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"

	// DisabledPin turns the front-panel button off.
	DisabledPin = -1
)

// Config holds the daemon settings.
type Config struct {
	Device  DeviceConfig    `toml:"device"`
	GPIO    GPIOConfig      `toml:"gpio"`
	MQTT    MQTTConfig      `toml:"mqtt"`
	HTTP    HTTPConfig      `toml:"http"`
	Log     LogConfig       `toml:"log"`
	Station []StationConfig `toml:"station"`
}

// DeviceConfig covers the tick and the settings image.
type DeviceConfig struct {
	TickMs     int    `toml:"tick_ms"`
	EEPROMPath string `toml:"eeprom_path"`
	EEPROMSize int    `toml:"eeprom_size"`
	Timezone   string `toml:"timezone"`
}

// GPIOConfig covers the front-panel button.
type GPIOConfig struct {
	Chip        string `toml:"chip"`
	ButtonPin   *int   `toml:"button_pin"`
	DebounceMs  int    `toml:"debounce_ms"`
	LongPressMs int    `toml:"long_press_ms"`
}

// MQTTConfig covers the broker connection and topics.
type MQTTConfig struct {
	Broker       string `toml:"broker"`
	ClientID     string `toml:"client_id"`
	TopicPrefix  string `toml:"topic_prefix"`
	WSBroker     string `toml:"ws_broker"`
	HeartbeatSec int    `toml:"heartbeat_sec"`
}

// HTTPConfig covers the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr *string `toml:"addr"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StationConfig is one stream directory entry.
type StationConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Default returns the configuration used without a file.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads and validates the file at path. An empty path gives Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(body)
	if err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML, fills defaults and validates.
func Parse(body []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Device.TickMs <= 0 {
		cfg.Device.TickMs = defaultTickMs
	}
	if strings.TrimSpace(cfg.Device.EEPROMPath) == "" {
		cfg.Device.EEPROMPath = defaultEEPROMPath
	}
	if cfg.Device.EEPROMSize <= 0 {
		cfg.Device.EEPROMSize = eeprom.DefaultSize
	}
	if strings.TrimSpace(cfg.Device.Timezone) == "" {
		cfg.Device.Timezone = defaultTimezone
	}

	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = defaultChip
	}
	if cfg.GPIO.ButtonPin == nil {
		pin := defaultButtonPin
		cfg.GPIO.ButtonPin = &pin
	}
	if cfg.GPIO.DebounceMs <= 0 {
		cfg.GPIO.DebounceMs = defaultDebounceMs
	}
	if cfg.GPIO.LongPressMs <= 0 {
		cfg.GPIO.LongPressMs = defaultLongPressMs
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = defaultBroker
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = defaultClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = defaultTopicPrefix
	}
	if cfg.MQTT.WSBroker == "" {
		cfg.MQTT.WSBroker = defaultWSBroker
	}
	if cfg.MQTT.HeartbeatSec < 0 {
		cfg.MQTT.HeartbeatSec = 0
	} else if cfg.MQTT.HeartbeatSec == 0 {
		cfg.MQTT.HeartbeatSec = defaultHeartbeatSec
	}

	if cfg.HTTP.Addr == nil {
		addr := defaultHTTPAddr
		cfg.HTTP.Addr = &addr
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
}

// Validate checks values that have no sensible default.
func (c Config) Validate() error {
	if c.Device.EEPROMSize > 1<<16 {
		return errors.New("device.eeprom_size must be <=65536")
	}
	if _, err := time.LoadLocation(c.Device.Timezone); err != nil {
		return fmt.Errorf("device.timezone %q: %w", c.Device.Timezone, err)
	}
	if pin := c.ButtonPin(); pin < DisabledPin {
		return fmt.Errorf("gpio.button_pin must be >=%d, got %d", DisabledPin, pin)
	}
	if c.GPIO.LongPressMs <= c.GPIO.DebounceMs {
		return errors.New("gpio.long_press_ms must exceed gpio.debounce_ms")
	}
	if _, err := url.Parse(c.MQTT.Broker); err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
		return fmt.Errorf("mqtt.topic_prefix %q must not contain wildcards", c.MQTT.TopicPrefix)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format has unsupported value %q", c.Log.Format)
	}
	for i, st := range c.Station {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("station[%d].name is required", i)
		}
		u, err := url.Parse(st.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("station[%d].url %q is not an absolute URL", i, st.URL)
		}
	}
	return nil
}

// Tick returns the main loop interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Device.TickMs) * time.Millisecond
}

// Location returns the configured timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ButtonPin returns the button line, or DisabledPin.
func (c Config) ButtonPin() int {
	if c.GPIO.ButtonPin == nil {
		return defaultButtonPin
	}
	return *c.GPIO.ButtonPin
}

// Debounce returns the button debounce interval.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.GPIO.DebounceMs) * time.Millisecond
}

// LongPress returns the hold time of a long press.
func (c Config) LongPress() time.Duration {
	return time.Duration(c.GPIO.LongPressMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; 0 disables it.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.MQTT.HeartbeatSec) * time.Second
}

// HTTPAddr returns the status server address; empty disables it.
func (c Config) HTTPAddr() string {
	if c.HTTP.Addr == nil {
		return defaultHTTPAddr
	}
	return *c.HTTP.Addr
}

// SetHTTPAddr overrides the status server address.
func (c *Config) SetHTTPAddr(addr string) {
	c.HTTP.Addr = &addr
}

// WSBrokerURL converts mqtt.ws_broker into a concrete URL for the live UI.
// "=broker" derives ws://host:9001 from the TCP broker; "off" disables.
func (c Config) WSBrokerURL() (string, error) {
	ws := c.MQTT.WSBroker
	if ws == "off" {
		return "", nil
	}
	if ws != defaultWSBroker {
		return ws, nil
	}
	u, err := url.Parse(c.MQTT.Broker)
	if err != nil {
		return "", fmt.Errorf("derive ws broker from %q: %w", c.MQTT.Broker, err)
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}
