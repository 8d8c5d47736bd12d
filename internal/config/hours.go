package config

import (
	"fmt"
	"os"
	"time"

	"ezbiz/internal/model"

	"gopkg.in/yaml.v3"
)

// DayHoursConfig is the opening window for one day type.
type DayHoursConfig struct {
	Open   string `yaml:"open"`  // "08:00"
	Close  string `yaml:"close"` // "17:00"
	Closed bool   `yaml:"closed"`
}

// HolidayConfig represents a date the business is closed.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// ServiceConfig is one entry of the service duration catalog.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	AddOn           bool   `yaml:"add_on"`
	IsActive        *bool  `yaml:"is_active,omitempty"`
}

func (s ServiceConfig) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// HoursConfig is the root of hours.yaml.
type HoursConfig struct {
	BusinessHours struct {
		Weekday DayHoursConfig `yaml:"weekday"`
		Weekend DayHoursConfig `yaml:"weekend"`
	} `yaml:"business_hours"`
	DaysOff  []int           `yaml:"days_off"` // 1=Mon, 7=Sun
	Holidays []HolidayConfig `yaml:"holidays"`
	Services []ServiceConfig `yaml:"services"`
}

// LoadHours loads and validates hours configuration from YAML file.
func LoadHours(path string) (*HoursConfig, error) {
	if path == "" {
		path = "configs/hours.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hours config: %w", err)
	}

	var cfg HoursConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse hours config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate hours config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *HoursConfig) Validate() error {
	if err := validateDay(c.BusinessHours.Weekday, "business_hours.weekday"); err != nil {
		return err
	}
	if err := validateDay(c.BusinessHours.Weekend, "business_hours.weekend"); err != nil {
		return err
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(time.DateOnly, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, d := range c.DaysOff {
		if d < 1 || d > 7 {
			return fmt.Errorf("days_off[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, d)
		}
	}

	names := make(map[string]bool)
	for i, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("service[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("service[%d]: duplicate name '%s'", i, s.Name)
		}
		names[s.Name] = true
		if s.DurationMinutes < 0 {
			return fmt.Errorf("service[%d]: duration_minutes cannot be negative", i)
		}
	}

	return nil
}

func validateDay(d DayHoursConfig, prefix string) error {
	if d.Closed {
		return nil
	}
	if d.Open == "" || d.Close == "" {
		return fmt.Errorf("%s: open and close are required unless closed is set", prefix)
	}

	open, err := time.Parse("15:04", d.Open)
	if err != nil {
		return fmt.Errorf("%s.open: invalid format '%s', expected HH:MM", prefix, d.Open)
	}
	closeAt, err := time.Parse("15:04", d.Close)
	if err != nil {
		return fmt.Errorf("%s.close: invalid format '%s', expected HH:MM", prefix, d.Close)
	}
	if !closeAt.After(open) {
		return fmt.Errorf("%s: close must be after open", prefix)
	}
	return nil
}

// HoursFor resolves business hours for date. Holidays and days off close the date.
func (c *HoursConfig) HoursFor(date time.Time) (model.BusinessHours, error) {
	if ok, name := c.IsHoliday(date); ok {
		return model.BusinessHours{Closed: true, Reason: "holiday: " + name}, nil
	}
	if c.IsDayOff(date.Weekday()) {
		return model.BusinessHours{Closed: true, Reason: "day off"}, nil
	}

	day := c.BusinessHours.Weekday
	if model.DayTypeOf(date) == model.Weekend {
		day = c.BusinessHours.Weekend
	}
	if day.Closed {
		return model.BusinessHours{Closed: true, Reason: string(model.DayTypeOf(date)) + " closed"}, nil
	}
	return model.BusinessHours{Open: day.Open, Close: day.Close}, nil
}

// IsHoliday checks if a date is a holiday.
func (c *HoursConfig) IsHoliday(date time.Time) (bool, string) {
	dateStr := date.Format(time.DateOnly)
	for _, h := range c.Holidays {
		if h.Date == dateStr {
			return true, h.Name
		}
	}
	return false, ""
}

// IsDayOff checks if a weekday is a day off.
func (c *HoursConfig) IsDayOff(weekday time.Weekday) bool {
	// Go's weekday is 0=Sun; config uses 1=Mon, 7=Sun.
	day := int(weekday)
	if day == 0 {
		day = 7
	}

	for _, d := range c.DaysOff {
		if d == day {
			return true
		}
	}
	return false
}

// ActiveServices returns catalog entries that can be booked.
func (c *HoursConfig) ActiveServices() []ServiceConfig {
	result := make([]ServiceConfig, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Active() {
			result = append(result, s)
		}
	}
	return result
}

func (c *HoursConfig) String() string {
	return fmt.Sprintf("HoursConfig: weekday %s-%s, weekend %s-%s, %d holidays, %d services",
		c.BusinessHours.Weekday.Open, c.BusinessHours.Weekday.Close,
		c.BusinessHours.Weekend.Open, c.BusinessHours.Weekend.Close,
		len(c.Holidays), len(c.Services))
}
