package settings

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/eeprom"
)

// LoadPath identifies which branch Load took.
type LoadPath string

const (
	PathCurrent  LoadPath = "current"
	PathMigrated LoadPath = "migrated"
	PathDefaults LoadPath = "defaults"
)

// Repair records one alarm slot reset to defaults during load.
type Repair struct {
	Slot  int
	Field string
}

// LoadReport describes what Load found and fixed.
type LoadReport struct {
	Path          LoadPath
	StoredVersion byte
	Repairs       []Repair
	VolumeClamped bool
	Saved         bool
}

// Stats counts store activity since boot.
type Stats struct {
	Saves      int
	SaveErrors int
	Repairs    int
}

// Store reads and writes the configuration record on a Device.
type Store struct {
	dev   eeprom.Device
	log   *zap.Logger
	stats Stats
}

// NewStore creates a Store over dev.
func NewStore(dev eeprom.Device, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dev: dev, log: log.Named("settings")}
}

// Initialize checks the region can hold a record.
func (s *Store) Initialize() error {
	if s.dev.Size() < RecordSize {
		return fmt.Errorf("settings: region of %d bytes cannot hold %d byte record", s.dev.Size(), RecordSize)
	}
	return nil
}

// Stats returns store counters.
func (s *Store) Stats() Stats { return s.stats }

// Save stamps the current version and persists cfg.
func (s *Store) Save(cfg Config) error {
	cfg.Version = CurrentVersion
	if err := s.write(Encode(cfg)); err != nil {
		s.stats.SaveErrors++
		s.log.Error("settings save failed", zap.Error(err))
		return err
	}
	s.stats.Saves++
	return nil
}

func (s *Store) write(buf []byte) error {
	if err := s.dev.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.dev.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Load reads the record and returns a configuration in which every alarm
// slot is structurally valid:
//
//   - current version: invalid slots are reset individually, an out of
//     range volume is clamped.
//   - older version: schema-stable globals are kept, alarms reset.
//   - anything else (erased, zero, newer): full defaults.
//
// Whenever the result differs from what is stored it is saved before
// returning. A save failure is returned alongside the usable config.
func (s *Store) Load() (Config, LoadReport, error) {
	buf := make([]byte, RecordSize)
	if err := s.dev.ReadAt(buf, 0); err != nil {
		return Defaults(), LoadReport{Path: PathDefaults}, fmt.Errorf("read record: %w", err)
	}
	stored, err := Decode(buf)
	if err != nil {
		return Defaults(), LoadReport{Path: PathDefaults}, err
	}

	var (
		cfg    Config
		report = LoadReport{StoredVersion: stored.Version}
		dirty  bool
	)

	switch {
	case stored.Version == CurrentVersion:
		report.Path = PathCurrent
		cfg = stored
		for i := range cfg.Alarms {
			if field := cfg.Alarms[i].Validate(); field != "" {
				s.log.Warn("alarm slot corrupt, reset to defaults",
					zap.Int("slot", i),
					zap.String("field", field),
				)
				cfg.Alarms[i] = alarm.Default(i)
				report.Repairs = append(report.Repairs, Repair{Slot: i, Field: field})
				dirty = true
			}
		}
		s.stats.Repairs += len(report.Repairs)

	case stored.Version > 0 && stored.Version < CurrentVersion:
		report.Path = PathMigrated
		cfg = Defaults()
		cfg.Volume = stored.Volume
		cfg.CurrentStream = stored.CurrentStream
		cfg.BacklightAlwaysOn = stored.BacklightAlwaysOn
		cfg.RadioPowerOn = stored.RadioPowerOn
		cfg.WiFiSSID = stored.WiFiSSID
		cfg.WiFiPassword = stored.WiFiPassword
		cfg.WeatherAPIKey = stored.WeatherAPIKey
		s.log.Info("settings migrated",
			zap.Uint8("from", stored.Version),
			zap.Uint8("to", CurrentVersion),
		)
		dirty = true

	default:
		report.Path = PathDefaults
		cfg = Defaults()
		s.log.Info("settings unrecognized, using defaults", zap.Uint8("version", stored.Version))
		dirty = true
	}

	if v, clamped := clampVolume(cfg.Volume); clamped {
		s.log.Warn("stored volume out of range", zap.Int("volume", cfg.Volume), zap.Int("using", v))
		cfg.Volume = v
		report.VolumeClamped = true
		dirty = true
	}
	cfg.Version = CurrentVersion

	if dirty {
		if err := s.Save(cfg); err != nil {
			return cfg, report, err
		}
		report.Saved = true
	}
	return cfg, report, nil
}
