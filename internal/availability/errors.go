package availability

import "errors"

// User-correctable outcomes. They are reported to the caller as messages, the
// caller decides whether to prompt for another date or time.
var (
	ErrOutOfHours     = errors.New("outside business hours")
	ErrSlotConflict   = errors.New("slot conflicts with an existing booking")
	ErrNoAvailability = errors.New("no availability")
)

// ErrStorageUnavailable marks a failed fetch or persist. It is retryable and
// the engine never retries it itself.
var ErrStorageUnavailable = errors.New("storage unavailable")

// IsUserCorrectable reports whether err is one of the validation outcomes.
func IsUserCorrectable(err error) bool {
	return errors.Is(err, ErrOutOfHours) ||
		errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrNoAvailability)
}

// ReasonCode returns a short label for err, used in metrics and API payloads.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfHours):
		return "out_of_hours"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrNoAvailability):
		return "no_availability"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
