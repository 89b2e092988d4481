// Command alarm-radio runs the alarm clock engine of an internet radio:
// it fires the configured alarms, handles the front-panel button, drives
// the player over MQTT and persists its settings to an EEPROM image.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/actuator"
	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/button"
	"github.com/sweeney/alarm-radio/internal/config"
	"github.com/sweeney/alarm-radio/internal/eeprom"
	"github.com/sweeney/alarm-radio/internal/gpio"
	"github.com/sweeney/alarm-radio/internal/logging"
	"github.com/sweeney/alarm-radio/internal/metrics"
	"github.com/sweeney/alarm-radio/internal/mqtt"
	"github.com/sweeney/alarm-radio/internal/settings"
	"github.com/sweeney/alarm-radio/internal/sleep"
	"github.com/sweeney/alarm-radio/internal/stations"
	"github.com/sweeney/alarm-radio/internal/status"
	"github.com/sweeney/alarm-radio/internal/web"
)

type options struct {
	configPath  string
	broker      string
	httpAddr    *string // nil keeps the configured address
	printConfig bool
}

func main() {
	configPath := flag.String("config", "", "Path to the TOML config file (empty for defaults)")
	broker := flag.String("broker", "", "MQTT broker address (overrides the config file)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides the config file, empty to disable)")
	printConfig := flag.Bool("print-config", false, "Print the stored settings record and exit")

	flag.Parse()

	opts := options{configPath: *configPath, broker: *broker, printConfig: *printConfig}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "http" {
			opts.httpAddr = httpAddr
		}
	})

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.broker != "" {
		cfg.MQTT.Broker = opts.broker
	}
	if opts.httpAddr != nil {
		cfg.SetHTTPAddr(*opts.httpAddr)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// Persistent settings
	dev, err := eeprom.OpenFile(cfg.Device.EEPROMPath, cfg.Device.EEPROMSize)
	if err != nil {
		return fmt.Errorf("open eeprom: %w", err)
	}
	defer dev.Close()

	store := settings.NewStore(dev, logger)
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("init settings: %w", err)
	}
	stored, report, err := store.Load()
	if err != nil {
		logger.Error("settings load incomplete, continuing", zap.Error(err))
	}

	if opts.printConfig {
		printSettings(os.Stdout, stored, report)
		return nil
	}

	// Initialize MQTT
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topics:   topics,
	}, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Button
	var reader gpio.Reader
	if pin := cfg.ButtonPin(); pin != config.DisabledPin {
		r, err := gpio.NewRealReader(cfg.GPIO.Chip, pin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
	} else {
		logger.Info("button disabled")
	}

	wsBroker, err := cfg.WSBrokerURL()
	if err != nil {
		logger.Warn("live page disabled", zap.Error(err))
	}

	start := time.Now()
	dir := stations.New(cfg.Station)
	tracker := status.NewTracker(start, status.BootInfo{
		ID:            uuid.NewString(),
		LoadPath:      report.Path,
		StoredVersion: report.StoredVersion,
		Repairs:       len(report.Repairs),
	}, status.Config{
		TickMs:      cfg.Tick().Milliseconds(),
		DebounceMs:  cfg.Debounce().Milliseconds(),
		LongPressMs: cfg.LongPress().Milliseconds(),
		HeartbeatMs: cfg.Heartbeat().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTPAddr(),
		WSBroker:    wsBroker,
		EventsTopic: topics.Events,
		Timezone:    cfg.Device.Timezone,
		Stations:    dir.Names(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	l := newLoop(loopDeps{
		Clock:     alarm.SystemClock{Location: cfg.Location()},
		Stored:    stored,
		Store:     store,
		Stations:  dir,
		Reader:    reader,
		Debounce:  cfg.Debounce(),
		LongPress: cfg.LongPress(),
		Publisher: publisher,
		Conn:      publisher,
		Tracker:   tracker,
		Heartbeat: cfg.Heartbeat(),
		Now:       time.Now,
	}, logger)
	l.metrics.WatchQueue(publisher)

	// Restore the radio as it was at power loss.
	l.setPower(stored.RadioPowerOn)

	// Publish startup event with full status snapshot
	l.refreshStatus()
	snap := tracker.Snapshot()
	l.publishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	})

	// Start HTTP status server
	cmds := make(chan web.Request)
	if addr := cfg.HTTPAddr(); addr != "" {
		srv := web.New(addr, tracker, web.Options{
			Commands: cmds,
			Guard:    l.guard,
			Metrics:  l.metrics.Handler(),
			Log:      logger,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", zap.String("addr", addr))
	}

	logger.Info("started",
		zap.Duration("tick", cfg.Tick()),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.Heartbeat()),
		zap.Int("stations", dir.Count()),
		zap.String("settings", string(report.Path)),
	)

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(l, ticker.C, sigCh, cmds)
}

// loopDeps are the collaborators built by run, or by tests.
type loopDeps struct {
	Clock     alarm.Clock
	Stored    settings.Config
	Store     *settings.Store
	Stations  *stations.Directory
	Reader    gpio.Reader
	Debounce  time.Duration
	LongPress time.Duration
	Publisher mqtt.Publisher
	Conn      mqtt.ConnectionStatus
	Tracker   *status.Tracker
	Heartbeat time.Duration
	Now       func() time.Time
}

// newLoop wires the engine and its collaborators around one settings
// manager.
func newLoop(d loopDeps, logger *zap.Logger) *loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := settings.NewManager(d.Store, d.Stored)
	guard := &alarm.EditGuard{}
	timer := sleep.New(d.Now)
	player := actuator.NewPlayer(d.Publisher, false, d.Now, logger)
	display := actuator.NewDisplay(d.Publisher, d.Now, logger)

	engine := alarm.NewEngine(alarm.Deps{
		Clock:    d.Clock,
		Settings: manager,
		Player:   player,
		Notifier: display,
		Streams:  d.Stations,
		Sleep:    timer,
		Guard:    guard,
	}, logger)

	return &loop{
		clock:     d.Clock,
		engine:    engine,
		editor:    alarm.NewEditor(manager, guard, logger),
		settings:  manager,
		store:     d.Store,
		player:    player,
		sleep:     timer,
		guard:     guard,
		stations:  d.Stations,
		reader:    d.Reader,
		detector:  button.NewDetector(d.Debounce, d.LongPress),
		publisher: d.Publisher,
		conn:      d.Conn,
		tracker:   d.Tracker,
		metrics:   metrics.New(d.Tracker),
		heartbeat: status.NewHeartbeat(d.Heartbeat, d.Now()),
		now:       d.Now,
		log:       logger,
	}
}

// printSettings writes the stored record in a human readable form.
// Credentials are only reported as set or unset.
func printSettings(w io.Writer, cfg settings.Config, report settings.LoadReport) {
	fmt.Fprintf(w, "settings: %s (stored version %d, %d slots repaired)\n",
		report.Path, report.StoredVersion, len(report.Repairs))
	fmt.Fprintf(w, "volume=%d stream=%d power=%t backlight=%t\n",
		cfg.Volume, cfg.CurrentStream, cfg.RadioPowerOn, cfg.BacklightAlwaysOn)
	fmt.Fprintf(w, "wifi_ssid=%q wifi_password=%s weather_api_key=%s\n",
		cfg.WiFiSSID, setOrUnset(cfg.WiFiPassword), setOrUnset(cfg.WeatherAPIKey))
	for i, a := range cfg.Alarms {
		state := "OFF"
		if a.Enabled {
			state = "ON"
		}
		fmt.Fprintf(w, "alarm %d: %-3s %02d:%02d %-8s station=%d max_volume=%d auto_off=%s label=%q\n",
			i, state, a.Hour, a.Minute, a.Schedule, a.Station, a.MaxVolume, a.AutoOff, a.Label)
	}
}

func setOrUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
