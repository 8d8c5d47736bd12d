package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayType selects which business hours apply to a date.
type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
)

// DayTypeOf returns Weekend for Saturday and Sunday, Weekday otherwise.
func DayTypeOf(date time.Time) DayType {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	default:
		return Weekday
	}
}

// BusinessHours are the opening hours effective for one date.
type BusinessHours struct {
	Open   string `json:"open"`  // "08:00"
	Close  string `json:"close"` // "17:00"
	Closed bool   `json:"closed"`
	Reason string `json:"reason,omitempty"`
}

// Bounds resolves the open and close clock times on date.
func (h BusinessHours) Bounds(date time.Time) (open, closeAt time.Time, err error) {
	open, err = TimeOnDate(date, h.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse open time: %w", err)
	}
	closeAt, err = TimeOnDate(date, h.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse close time: %w", err)
	}
	if !closeAt.After(open) {
		return time.Time{}, time.Time{}, fmt.Errorf("close time %s must be after open time %s", h.Close, h.Open)
	}
	return open, closeAt, nil
}

func (h BusinessHours) String() string {
	if h.Closed {
		if h.Reason != "" {
			return "closed (" + h.Reason + ")"
		}
		return "closed"
	}
	return h.Open + "-" + h.Close
}

// TimeOnDate places an "HH:MM" clock value on the given date.
func TimeOnDate(date time.Time, clock string) (time.Time, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", clock)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", clock)
	}
	if hour == 24 && minute != 0 {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}
