// Package metrics exposes daemon state to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/alarm-radio/internal/mqtt"
	"github.com/sweeney/alarm-radio/internal/status"
)

const namespace = "alarm_radio"

// SnapshotSource supplies the daemon state read on every scrape.
type SnapshotSource interface {
	Snapshot() status.Snapshot
}

// Metrics owns the registry plus the counters updated directly by the
// main loop and the HTTP command handler.
type Metrics struct {
	Registry     *prometheus.Registry
	TickDuration prometheus.Histogram
	Commands     *prometheus.CounterVec
	Published    *prometheus.CounterVec
}

// New creates a registry with the state collector and the direct metrics.
func New(src SnapshotSource) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Main loop tick processing time",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Remote and button commands by action and result",
		}, []string{"action", "result"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_total",
			Help:      "MQTT publishes by kind and result",
		}, []string{"kind", "result"}),
	}
	m.Registry.MustRegister(m.TickDuration, m.Commands, m.Published, NewCollector(src))
	return m
}

// QueueSource reports the MQTT offline queue.
type QueueSource interface {
	Queued() mqtt.QueueStats
}

// WatchQueue exports the offline queue counters of q.
func (m *Metrics) WatchQueue(q QueueSource) {
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_queue_waiting",
			Help:      "Messages waiting for the broker",
		}, func() float64 { return float64(q.Queued().Waiting) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_queue_dropped_total",
			Help:      "Queued messages lost to overflow",
		}, func() float64 { return float64(q.Queued().Dropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_queue_replaced_total",
			Help:      "Queued messages superseded by a newer state",
		}, func() float64 { return float64(q.Queued().Replaced) }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Collector reads a status snapshot on each scrape.
type Collector struct {
	src SnapshotSource

	alarmEvents   *prometheus.Desc
	buttonPresses *prometheus.Desc
	saves         *prometheus.Desc
	saveErrors    *prometheus.Desc
	repairs       *prometheus.Desc
	alarmEnabled  *prometheus.Desc
	alarmActive   *prometheus.Desc
	alarmSnoozing *prometheus.Desc
	fadeVolume    *prometheus.Desc
	playerVolume  *prometheus.Desc
	playerPowered *prometheus.Desc
	sleepSeconds  *prometheus.Desc
	clockSynced   *prometheus.Desc
	mqttConnected *prometheus.Desc
	uptime        *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src SnapshotSource) *Collector {
	d := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:           src,
		alarmEvents:   d("alarm_events_total", "Alarm lifecycle events since boot", "type"),
		buttonPresses: d("button_presses_total", "Front-panel button presses since boot", "type"),
		saves:         d("settings_saves_total", "Settings records written"),
		saveErrors:    d("settings_save_errors_total", "Settings writes that failed"),
		repairs:       d("settings_slot_repairs", "Alarm slots reset to defaults at boot"),
		alarmEnabled:  d("alarm_enabled", "Whether an alarm slot is enabled", "slot"),
		alarmActive:   d("alarm_active", "Whether an alarm slot is firing", "slot"),
		alarmSnoozing: d("alarm_snoozing", "Whether an alarm slot is snoozing", "slot"),
		fadeVolume:    d("fade_volume", "Current fade-in volume of the firing alarm"),
		playerVolume:  d("player_volume", "Last volume sent to the player"),
		playerPowered: d("player_powered", "Radio power flag"),
		sleepSeconds:  d("sleep_timer_remaining_seconds", "Time left on the sleep timer"),
		clockSynced:   d("clock_synced", "Whether wall-clock time is known"),
		mqttConnected: d("mqtt_connected", "Whether the broker connection is up"),
		uptime:        d("uptime_seconds", "Seconds since the daemon started"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.alarmEvents, c.buttonPresses, c.saves, c.saveErrors, c.repairs,
		c.alarmEnabled, c.alarmActive, c.alarmSnoozing, c.fadeVolume,
		c.playerVolume, c.playerPowered, c.sleepSeconds, c.clockSynced,
		c.mqttConnected, c.uptime,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()

	counter := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.alarmEvents, s.AlarmCounts.Fired, "fired")
	counter(c.alarmEvents, s.AlarmCounts.Timeouts, "timeout")
	counter(c.alarmEvents, s.AlarmCounts.Stopped, "stopped")
	counter(c.alarmEvents, s.AlarmCounts.Snoozed, "snoozed")
	counter(c.alarmEvents, s.AlarmCounts.SnoozeCancelled, "snooze_cancelled")
	counter(c.buttonPresses, s.ButtonCounts.Short, "short")
	counter(c.buttonPresses, s.ButtonCounts.Long, "long")
	counter(c.saves, s.Store.Saves)
	counter(c.saveErrors, s.Store.SaveErrors)
	gauge(c.repairs, float64(s.Boot.Repairs))

	for _, a := range s.Alarms {
		slot := strconv.Itoa(a.Slot)
		gauge(c.alarmEnabled, boolFloat(a.Enabled), slot)
		gauge(c.alarmActive, boolFloat(a.Active), slot)
		gauge(c.alarmSnoozing, boolFloat(a.Snoozing), slot)
	}

	gauge(c.fadeVolume, float64(s.FadeVolume))
	gauge(c.playerVolume, float64(s.Player.Volume))
	gauge(c.playerPowered, boolFloat(s.Player.Powered))
	gauge(c.sleepSeconds, s.Sleep.Remaining.Seconds())
	gauge(c.clockSynced, boolFloat(s.ClockSynced))
	gauge(c.mqttConnected, boolFloat(s.MQTTConnected))
	gauge(c.uptime, s.Uptime().Seconds())
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
