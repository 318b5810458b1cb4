// Package config loads passbot settings from a YAML file, an optional .env
// file and PASSBOT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jwcutler/passbot/internal/orbit"
)

// ErrInvalidConfig is returned for unreadable or inconsistent configuration.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete passbot configuration.
type Config struct {
	Observer   ObserverConfig    `yaml:"observer"`
	Tracking   TrackingConfig    `yaml:"tracking"`
	Calendar   CalendarConfig    `yaml:"calendar"`
	Satellites []SatelliteConfig `yaml:"satellites"`
	TLE        TLEConfig         `yaml:"tle"`
	Server     ServerConfig      `yaml:"server"`
}

// ObserverConfig is the ground station. Latitude and longitude have no
// default; a nil value means "not configured".
type ObserverConfig struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Elevation float64  `yaml:"elevation"` // metres
}

// TrackingConfig controls the search window and what is written.
type TrackingConfig struct {
	DaysAhead       int     `yaml:"days_ahead"`
	MinElevation    float64 `yaml:"min_elevation"`
	DeleteExisting  bool    `yaml:"delete_existing"`
	ReminderMinutes int     `yaml:"reminder_minutes"` // negative disables
	Concurrency     int     `yaml:"concurrency"`
}

// CalendarConfig selects the target calendar and the credential files.
type CalendarConfig struct {
	CalendarID  string `yaml:"calendar_id"`
	Credentials string `yaml:"credentials"`
	Token       string `yaml:"token"`
	Subject     string `yaml:"subject"`
}

// SatelliteConfig is one batch entry. Exactly one of URL, NORADID or TLE
// should be set.
type SatelliteConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	NORADID int    `yaml:"norad_id"`
	TLE     string `yaml:"tle"`
}

// Input returns the TLE source in the form accepted by tle.Resolver.
func (s SatelliteConfig) Input() string {
	switch {
	case s.URL != "":
		return s.URL
	case s.NORADID > 0:
		return strconv.Itoa(s.NORADID)
	default:
		return s.TLE
	}
}

// TLEConfig controls TLE downloads and caching.
type TLEConfig struct {
	CacheDir      string        `yaml:"cache_dir"`
	CacheFiles    int           `yaml:"cache_files"`
	MaxAge        time.Duration `yaml:"max_age"`
	Timeout       time.Duration `yaml:"timeout"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	AuthEnabled bool   `yaml:"auth_enabled"`
	AuthToken   string `yaml:"auth_token"`
	TrustProxy  bool   `yaml:"trust_proxy"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Tracking: TrackingConfig{
			DaysAhead:       5,
			MinElevation:    10,
			ReminderMinutes: 10,
			Concurrency:     4,
		},
		Calendar: CalendarConfig{
			CalendarID:  "primary",
			Credentials: "credentials.json",
			Token:       "token.json",
		},
		TLE: TLEConfig{
			CacheDir:   "data/tle",
			CacheFiles: 5,
			MaxAge:     24 * time.Hour,
			Timeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads .env (if present), then path (if non-empty), then PASSBOT_*
// variables. Malformed variables are logged and ignored. The result is not
// validated.
func Load(path string, logger *slog.Logger) (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	}

	applyEnv(cfg, logger)
	return cfg, nil
}

// Location returns the configured ground station.
func (c *Config) Location() (orbit.Observer, error) {
	obs, err := c.location()
	if err != nil {
		return orbit.Observer{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return obs, nil
}

func (c *Config) location() (orbit.Observer, error) {
	if c.Observer.Latitude == nil || c.Observer.Longitude == nil {
		return orbit.Observer{}, errors.New("observer latitude and longitude are required")
	}
	obs := orbit.Observer{
		LatDeg: *c.Observer.Latitude,
		LonDeg: *c.Observer.Longitude,
		AltM:   c.Observer.Elevation,
	}
	return obs, obs.Validate()
}

// Window returns the search horizon.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Tracking.DaysAhead) * 24 * time.Hour
}

// Reminder returns the popup lead time; negative means no popup.
func (c *Config) Reminder() time.Duration {
	if c.Tracking.ReminderMinutes < 0 {
		return -1
	}
	return time.Duration(c.Tracking.ReminderMinutes) * time.Minute
}

// Validate checks the settings that every command depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Tracking.DaysAhead < 1 {
		errs = append(errs, fmt.Errorf("tracking.days_ahead must be at least 1, got %d", c.Tracking.DaysAhead))
	}
	if c.Tracking.MinElevation < 0 || c.Tracking.MinElevation >= 90 {
		errs = append(errs, fmt.Errorf("tracking.min_elevation must be in [0, 90), got %g", c.Tracking.MinElevation))
	}
	if c.Tracking.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("tracking.concurrency must be at least 1, got %d", c.Tracking.Concurrency))
	}
	if c.Calendar.CalendarID == "" {
		errs = append(errs, errors.New("calendar.calendar_id must not be empty"))
	}
	if c.Observer.Latitude != nil || c.Observer.Longitude != nil {
		if _, err := c.location(); err != nil {
			errs = append(errs, err)
		}
	}
	for i, s := range c.Satellites {
		set := 0
		for _, ok := range []bool{s.URL != "", s.NORADID > 0, s.TLE != ""} {
			if ok {
				set++
			}
		}
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("satellites[%d]: name is required", i))
		}
		if set != 1 {
			errs = append(errs, fmt.Errorf("satellites[%d] (%s): exactly one of url, norad_id or tle is required", i, s.Name))
		}
	}
	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		errs = append(errs, errors.New("server.auth_token is required when auth is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateBatch is Validate plus the requirements of a batch run.
func (c *Config) ValidateBatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Satellites) == 0 {
		return fmt.Errorf("%w: no satellites configured", ErrInvalidConfig)
	}
	return nil
}
