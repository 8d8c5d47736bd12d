// Package availability computes open slots, validates requested slots and
// plans recurring bookings against business hours and existing bookings.
package availability

import (
	"context"
	"fmt"
	"time"

	"ezbiz/internal/metrics"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/rs/zerolog"
)

// Store is the read side of booking storage the engine depends on.
type Store interface {
	// BookingsForDate returns every holding booking on date.
	BookingsForDate(ctx context.Context, date time.Time) ([]model.Booking, error)
	// ServiceDurations returns known durations for the given names; unknown names are absent.
	ServiceDurations(ctx context.Context, names []string) (map[string]int, error)
}

// HoursProvider resolves business hours for a date.
type HoursProvider interface {
	HoursFor(date time.Time) (model.BusinessHours, error)
}

// Engine answers availability questions for page handlers and the booking workflow.
type Engine struct {
	store  Store
	hours  HoursProvider
	logger zerolog.Logger
}

func NewEngine(store Store, hours HoursProvider, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		hours:  hours,
		logger: logger.With().Str("component", "availability").Logger(),
	}
}

// DurationFor sums the durations of the selected services. Unknown services
// count as the default duration, as does an empty selection.
func (e *Engine) DurationFor(ctx context.Context, services []string) (int, error) {
	if len(services) == 0 {
		return model.DefaultDurationMinutes, nil
	}

	known, err := e.store.ServiceDurations(ctx, services)
	if err != nil {
		metrics.IncStorageError("service_durations")
		return 0, fmt.Errorf("fetch service durations: %w: %w", ErrStorageUnavailable, err)
	}

	total := 0
	for _, name := range services {
		total += model.NormalizeDuration(known[name])
	}
	return total, nil
}

// GetAvailableSlots returns ordered start times on date that fit durationMinutes.
// An empty result means no availability for the date.
func (e *Engine) GetAvailableSlots(ctx context.Context, date time.Time, durationMinutes int) ([]time.Time, error) {
	date = model.DateOf(date)

	hours, bookings, err := e.load(ctx, date)
	if err != nil {
		return nil, err
	}

	slots, err := Slots(date, hours, bookings, durationMinutes)
	if err != nil {
		return nil, err
	}

	metrics.IncSlotQuery(len(slots) > 0)
	return slots, nil
}

// CheckAvailability validates a clock time ("HH:MM") on date.
func (e *Engine) CheckAvailability(ctx context.Context, date time.Time, startTime string, durationMinutes int) (Result, error) {
	start, err := model.TimeOnDate(date, startTime)
	if err != nil {
		return Result{}, fmt.Errorf("start time: %w", err)
	}
	return e.CheckAt(ctx, start, durationMinutes)
}

// CheckAt validates the interval beginning at start.
func (e *Engine) CheckAt(ctx context.Context, start time.Time, durationMinutes int) (Result, error) {
	hours, bookings, err := e.load(ctx, model.DateOf(start))
	if err != nil {
		return Result{}, err
	}

	res, err := Check(start, durationMinutes, hours, bookings)
	if err != nil {
		return Result{}, err
	}

	metrics.IncAvailabilityCheck(ReasonCode(res.Err))
	return res, nil
}

// GenerateRecurrenceDates lists the dates after anchor for pattern within horizon.
func (e *Engine) GenerateRecurrenceDates(anchor time.Time, pattern recurrence.Pattern, horizon recurrence.Horizon) ([]time.Time, error) {
	return recurrence.Collect(anchor, pattern, horizon)
}

// Skipped is a recurring date that failed validation.
type Skipped struct {
	Start  time.Time `json:"start"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
}

// Plan is the validated outcome of a recurring request. Accepted dates carry
// the anchor's clock time.
type Plan struct {
	Accepted []time.Time `json:"accepted"`
	Skipped  []Skipped   `json:"skipped"`
}

// PlanRecurring validates every date of the series beginning at anchorStart.
// Dates that fail validation are skipped with a warning and never abort the
// series; storage failures do.
func (e *Engine) PlanRecurring(ctx context.Context, anchorStart time.Time, durationMinutes int, pattern recurrence.Pattern, horizon recurrence.Horizon) (Plan, error) {
	dates, err := recurrence.Dates(anchorStart, pattern, horizon)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Accepted: []time.Time{}, Skipped: []Skipped{}}
	for start := range dates {
		res, err := e.CheckAt(ctx, start, durationMinutes)
		if err != nil {
			return plan, fmt.Errorf("plan %s: %w", start.Format(time.DateOnly), err)
		}
		if res.OK {
			plan.Accepted = append(plan.Accepted, start)
			continue
		}

		code := ReasonCode(res.Err)
		e.logger.Warn().
			Time("start", start).
			Str("pattern", string(pattern)).
			Str("code", code).
			Str("reason", res.Reason).
			Msg("recurring date skipped")
		metrics.IncOccurrenceSkipped(code)
		plan.Skipped = append(plan.Skipped, Skipped{Start: start, Code: code, Reason: res.Reason})
	}

	return plan, nil
}

func (e *Engine) load(ctx context.Context, date time.Time) (model.BusinessHours, []model.Booking, error) {
	hours, err := e.hours.HoursFor(date)
	if err != nil {
		return model.BusinessHours{}, nil, fmt.Errorf("business hours for %s: %w", date.Format(time.DateOnly), err)
	}
	if hours.Closed {
		return hours, nil, nil
	}

	bookings, err := e.store.BookingsForDate(ctx, date)
	if err != nil {
		metrics.IncStorageError("bookings_for_date")
		return model.BusinessHours{}, nil, fmt.Errorf("fetch bookings for %s: %w: %w", date.Format(time.DateOnly), ErrStorageUnavailable, err)
	}
	return hours, bookings, nil
}
