package availability

import (
	"fmt"
	"time"

	"ezbiz/internal/model"
)

// SlotStep is the distance between candidate start times.
const SlotStep = 30 * time.Minute

// Slots lists the start times on date where a booking of durationMinutes fits
// inside business hours without overlapping any holding booking. The result is
// ordered and empty when nothing fits or the business is closed.
func Slots(date time.Time, hours model.BusinessHours, bookings []model.Booking, durationMinutes int) ([]time.Time, error) {
	if hours.Closed {
		return []time.Time{}, nil
	}

	open, closeAt, err := hours.Bounds(date)
	if err != nil {
		return nil, fmt.Errorf("business hours for %s: %w", date.Format(time.DateOnly), err)
	}

	duration := time.Duration(model.NormalizeDuration(durationMinutes)) * time.Minute
	slots := make([]time.Time, 0)

	for cursor := open; !cursor.Add(duration).After(closeAt); cursor = cursor.Add(SlotStep) {
		if firstOverlap(bookings, cursor, cursor.Add(duration)) != nil {
			continue
		}
		slots = append(slots, cursor)
	}

	return slots, nil
}

// firstOverlap returns the earliest holding booking intersecting [start, end).
func firstOverlap(bookings []model.Booking, start, end time.Time) *model.Booking {
	var found *model.Booking
	for i := range bookings {
		b := &bookings[i]
		if !b.IsHolding() || !b.OverlapsRange(start, end) {
			continue
		}
		if found == nil || b.Start.Before(found.Start) {
			found = b
		}
	}
	return found
}
