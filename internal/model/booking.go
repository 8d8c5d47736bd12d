package model

import (
	"errors"
	"time"
)

// DefaultDurationMinutes is used whenever a booking or service has no known duration.
const DefaultDurationMinutes = 60

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// ErrNotFound is returned by stores when a booking does not exist.
var ErrNotFound = errors.New("not found")

// Booking is a reserved interval of time for one appointment.
type Booking struct {
	ID              int64     `json:"id"`
	SeriesID        string    `json:"series_id,omitempty"`
	CustomerID      int64     `json:"customer_id"`
	AddressID       int64     `json:"address_id,omitempty"`
	ServiceName     string    `json:"service_name"`
	AddOns          []string  `json:"add_ons,omitempty"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Comment         string    `json:"comment,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectiveDuration returns the duration in minutes, falling back to the default.
func (b *Booking) EffectiveDuration() int {
	return NormalizeDuration(b.DurationMinutes)
}

func (b *Booking) Duration() time.Duration {
	return time.Duration(b.EffectiveDuration()) * time.Minute
}

func (b *Booking) End() time.Time {
	return b.Start.Add(b.Duration())
}

// Date returns midnight of the booking's day in the booking's location.
func (b *Booking) Date() time.Time {
	return DateOf(b.Start)
}

// IsHolding reports whether the booking occupies its slot.
func (b *Booking) IsHolding() bool {
	return b.Status != StatusCanceled
}

// OverlapsRange reports whether [start, end) intersects the booking interval.
func (b *Booking) OverlapsRange(start, end time.Time) bool {
	return start.Before(b.End()) && end.After(b.Start)
}

func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.OverlapsRange(other.Start, other.End())
}

// NormalizeDuration maps unknown (zero or negative) durations to DefaultDurationMinutes.
func NormalizeDuration(minutes int) int {
	if minutes <= 0 {
		return DefaultDurationMinutes
	}
	return minutes
}

// DateOf truncates t to midnight, keeping its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
