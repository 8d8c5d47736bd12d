package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Address          string  `yaml:"address"`
		RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
		WorkflowTTLMins  int     `yaml:"workflow_ttl_minutes"`
		ShutdownTimeoutS int     `yaml:"shutdown_timeout_seconds"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Hours struct {
		Path               string `yaml:"path"`
		ReloadIntervalSecs int    `yaml:"reload_interval_seconds"`
		Timezone           string `yaml:"timezone"`
	} `yaml:"hours"`

	Recurrence struct {
		HorizonDays    int `yaml:"horizon_days"`
		MaxOccurrences int `yaml:"max_occurrences"`
	} `yaml:"recurrence"`

	Booking struct {
		LockTTLSeconds int `yaml:"lock_ttl_seconds"`
		LockWaitMillis int `yaml:"lock_wait_millis"`
		MaxAdvanceDays int `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/ezbiz.db"
	}
	if c.Hours.Path == "" {
		c.Hours.Path = "configs/hours.yaml"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// RecurrenceHorizonDays is the time horizon applied to every recurring pattern.
func (c *Config) RecurrenceHorizonDays() int {
	if c.Recurrence.HorizonDays <= 0 {
		return 180
	}
	return c.Recurrence.HorizonDays
}

// RecurrenceMaxOccurrences caps the number of dates a single request may ask for.
func (c *Config) RecurrenceMaxOccurrences() int {
	if c.Recurrence.MaxOccurrences <= 0 {
		return 52
	}
	return c.Recurrence.MaxOccurrences
}

func (c *Config) BookingLockTTL() time.Duration {
	if c.Booking.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Booking.LockTTLSeconds) * time.Second
}

func (c *Config) BookingLockWait() time.Duration {
	if c.Booking.LockWaitMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Booking.LockWaitMillis) * time.Millisecond
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 365 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) WorkflowTTL() time.Duration {
	if c.HTTP.WorkflowTTLMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.HTTP.WorkflowTTLMins) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.HTTP.ShutdownTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HTTP.ShutdownTimeoutS) * time.Second
}

func (c *Config) HoursReloadInterval() time.Duration {
	if c.Hours.ReloadIntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Hours.ReloadIntervalSecs) * time.Second
}

// Location resolves hours.timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Hours.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Hours.Timezone)
}
