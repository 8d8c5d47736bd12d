package availability

import (
	"fmt"
	"time"

	"ezbiz/internal/model"
)

// Result is the outcome of validating one requested interval.
type Result struct {
	OK       bool
	Err      error
	Reason   string
	Conflict *model.Booking
}

// Error returns nil for an accepted request and the reason wrapped around the
// sentinel otherwise.
func (r Result) Error() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", r.Err, r.Reason)
}

// Check validates [start, start+durationMinutes) against business hours first
// and existing bookings second.
func Check(start time.Time, durationMinutes int, hours model.BusinessHours, bookings []model.Booking) (Result, error) {
	end := start.Add(time.Duration(model.NormalizeDuration(durationMinutes)) * time.Minute)

	if hours.Closed {
		reason := fmt.Sprintf("closed on %s", start.Format(time.DateOnly))
		if hours.Reason != "" {
			reason += " (" + hours.Reason + ")"
		}
		return Result{Err: ErrOutOfHours, Reason: reason}, nil
	}

	open, closeAt, err := hours.Bounds(start)
	if err != nil {
		return Result{}, fmt.Errorf("business hours for %s: %w", start.Format(time.DateOnly), err)
	}

	if start.Before(open) || end.After(closeAt) {
		return Result{
			Err: ErrOutOfHours,
			Reason: fmt.Sprintf("%s-%s is outside business hours %s-%s",
				start.Format("15:04"), end.Format("15:04"), hours.Open, hours.Close),
		}, nil
	}

	if conflict := firstOverlap(bookings, start, end); conflict != nil {
		c := *conflict
		return Result{
			Err:      ErrSlotConflict,
			Reason:   fmt.Sprintf("conflicts with the booking at %s", c.Start.Format("15:04")),
			Conflict: &c,
		}, nil
	}

	return Result{OK: true}, nil
}
