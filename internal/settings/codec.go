package settings

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/sweeney/alarm-radio/internal/alarm"
)

// Field widths of the fixed layout. String fields are NUL padded and hold
// at most width-1 bytes.
const (
	ssidWidth     = 32
	passwordWidth = 64
	apiKeyWidth   = 64
	labelWidth    = alarm.MaxLabelLen + 1
)

// Offsets of the fixed layout (little-endian int32 for integers).
const (
	offVersion   = 0
	offVolume    = 1
	offStream    = 5
	offBacklight = 9
	offPower     = 10
	offSSID      = 11
	offPassword  = offSSID + ssidWidth
	offAPIKey    = offPassword + passwordWidth
	offAlarms    = offAPIKey + apiKeyWidth

	// Alarm block: enabled u8, hour, minute, station, schedule,
	// max volume, auto-off, label.
	alarmEnabled   = 0
	alarmHour      = 1
	alarmMinute    = 5
	alarmStation   = 9
	alarmSchedule  = 13
	alarmMaxVolume = 17
	alarmAutoOff   = 21
	alarmLabel     = 25
	alarmBlockSize = alarmLabel + labelWidth

	// RecordSize is the encoded size of a Config.
	RecordSize = offAlarms + alarm.MaxAlarms*alarmBlockSize
)

var le = binary.LittleEndian

// Encode serializes cfg into the fixed layout. Runtime alarm state is
// dropped and strings are truncated to their field width.
func Encode(cfg Config) []byte {
	buf := make([]byte, RecordSize)

	buf[offVersion] = cfg.Version
	putInt(buf[offVolume:], cfg.Volume)
	putInt(buf[offStream:], cfg.CurrentStream)
	buf[offBacklight] = boolByte(cfg.BacklightAlwaysOn)
	buf[offPower] = boolByte(cfg.RadioPowerOn)
	putString(buf[offSSID:offSSID+ssidWidth], cfg.WiFiSSID)
	putString(buf[offPassword:offPassword+passwordWidth], cfg.WiFiPassword)
	putString(buf[offAPIKey:offAPIKey+apiKeyWidth], cfg.WeatherAPIKey)

	for i, a := range cfg.Alarms {
		b := buf[offAlarms+i*alarmBlockSize : offAlarms+(i+1)*alarmBlockSize]
		b[alarmEnabled] = boolByte(a.Enabled)
		putInt(b[alarmHour:], a.Hour)
		putInt(b[alarmMinute:], a.Minute)
		putInt(b[alarmStation:], a.Station)
		putInt(b[alarmSchedule:], int(a.Schedule))
		putInt(b[alarmMaxVolume:], a.MaxVolume)
		putInt(b[alarmAutoOff:], int(a.AutoOff))
		putString(b[alarmLabel:alarmLabel+labelWidth], a.Label)
	}
	return buf
}

// Decode parses the fixed layout without validating any field.
func Decode(buf []byte) (Config, error) {
	if len(buf) < RecordSize {
		return Config{}, fmt.Errorf("settings: record too short: %d < %d", len(buf), RecordSize)
	}

	cfg := Config{
		Version:           buf[offVersion],
		Volume:            getInt(buf[offVolume:]),
		CurrentStream:     getInt(buf[offStream:]),
		BacklightAlwaysOn: buf[offBacklight] != 0,
		RadioPowerOn:      buf[offPower] != 0,
		WiFiSSID:          getString(buf[offSSID : offSSID+ssidWidth]),
		WiFiPassword:      getString(buf[offPassword : offPassword+passwordWidth]),
		WeatherAPIKey:     getString(buf[offAPIKey : offAPIKey+apiKeyWidth]),
	}

	for i := range cfg.Alarms {
		b := buf[offAlarms+i*alarmBlockSize : offAlarms+(i+1)*alarmBlockSize]
		cfg.Alarms[i] = alarm.Alarm{
			Enabled:   b[alarmEnabled] != 0,
			Hour:      getInt(b[alarmHour:]),
			Minute:    getInt(b[alarmMinute:]),
			Station:   getInt(b[alarmStation:]),
			Schedule:  alarm.Schedule(getInt(b[alarmSchedule:])),
			MaxVolume: getInt(b[alarmMaxVolume:]),
			AutoOff:   alarm.AutoOff(getInt(b[alarmAutoOff:])),
			Label:     getString(b[alarmLabel : alarmLabel+labelWidth]),
		}
	}
	return cfg, nil
}

func putInt(b []byte, v int) {
	le.PutUint32(b, uint32(int32(v)))
}

func getInt(b []byte) int {
	return int(int32(le.Uint32(b)))
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// putString writes s NUL padded; at most len(b)-1 bytes, cut on a rune
// boundary.
func putString(b []byte, s string) {
	s = fitString(s, len(b)-1)
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

func getString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func fitString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
