package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/alarm-radio/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"slot": func(i int) string {
		if i < 0 {
			return "none"
		}
		return fmt.Sprintf("%d", i)
	},
	"mmss": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Alarm Radio</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.firing { color: red; font-weight: bold; }
.snoozing { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Alarm Radio{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Alarms</h2>
<table>
<tr><th>Slot</th><th>Time</th><th>Schedule</th><th>Station</th><th>Vol</th><th>Auto-off</th><th>State</th></tr>
{{range .Alarms}}<tr>
<td>{{.Slot}} {{.Label}}</td>
<td>{{.Time}}</td>
<td>{{.Schedule}}</td>
<td>{{.Station}}</td>
<td>{{.MaxVolume}}</td>
<td>{{.AutoOff}}</td>
<td id="alarm-{{.Slot}}" class="{{if .Active}}firing{{else if .Snoozing}}snoozing{{else if .Enabled}}on{{else}}off{{end}}">{{if .Active}}FIRING{{else if .Snoozing}}SNOOZING{{else if .Enabled}}ON{{else}}OFF{{end}}</td>
</tr>{{end}}
</table>

<h2>Session</h2>
<table>
<tr><th>Clock</th><td class="{{if .ClockSynced}}connected{{else}}disconnected{{end}}">{{if .ClockSynced}}synced{{else}}not synced{{end}}</td></tr>
<tr><th>Active slot</th><td>{{slot .ActiveSlot}}</td></tr>
<tr><th>Snoozing slot</th><td>{{slot .SnoozingSlot}}</td></tr>
<tr><th>Editing slot</th><td>{{slot .EditingSlot}}</td></tr>
<tr><th>Fade volume</th><td>{{.FadeVolume}}</td></tr>
<tr><th>User volume</th><td>{{.UserVolume}}</td></tr>
<tr><th>Player</th><td>{{if .Player.Powered}}on{{else}}off{{end}}{{if .Player.Playing}}, playing {{.Player.URL}}{{end}} (vol {{.Player.Volume}})</td></tr>
<tr><th>Sleep timer</th><td>{{if .Sleep.Active}}{{mmss .Sleep.Remaining}} of {{.Sleep.Minutes}}min{{else}}off{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Fired</th><td>{{.AlarmCounts.Fired}}</td></tr>
<tr><th>Timeouts</th><td>{{.AlarmCounts.Timeouts}}</td></tr>
<tr><th>Stopped</th><td>{{.AlarmCounts.Stopped}}</td></tr>
<tr><th>Snoozed</th><td>{{.AlarmCounts.Snoozed}}</td></tr>
<tr><th>Snooze cancelled</th><td>{{.AlarmCounts.SnoozeCancelled}}</td></tr>
<tr><th>Short presses</th><td>{{.ButtonCounts.Short}}</td></tr>
<tr><th>Long presses</th><td>{{.ButtonCounts.Long}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.Boot.ID}}</td></tr>
<tr><th>Settings</th><td>{{.Boot.LoadPath}} (v{{.Boot.StoredVersion}}, {{.Boot.Repairs}} repaired, {{.Store.Saves}} saves, {{.Store.SaveErrors}} errors)</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.EventsTopic}}";
  var dot = document.getElementById("live-dot");
  var states = {
    ALARM_FIRED: ["FIRING", "firing"],
    ALARM_SNOOZED: ["SNOOZING", "snoozing"],
    ALARM_STOPPED: ["ON", "on"],
    ALARM_TIMEOUT: ["ON", "on"],
    SNOOZE_CANCELLED: ["ON", "on"]
  };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.alarm && states[msg.alarm.event]) {
        var el = document.getElementById("alarm-" + msg.alarm.slot);
        if (el) {
          el.textContent = states[msg.alarm.event][0];
          el.className = states[msg.alarm.event][1];
        }
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
