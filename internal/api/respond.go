package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/lock"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/go-chi/render"
)

var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, r, status, ErrorResponse{Error: msg, Code: code})
}

// writeErr maps err to a status code and writes it. Server-side failures
// are logged, user-correctable ones are not.
func (s *HTTPServer) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, r, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, availability.ErrSlotConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, availability.ErrOutOfHours):
		return http.StatusUnprocessableEntity, "out_of_hours"
	case errors.Is(err, availability.ErrNoAvailability):
		return http.StatusUnprocessableEntity, "no_availability"
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, errBadRequest),
		errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, booking.ErrInvalidInput),
		errors.Is(err, recurrence.ErrUnknownPattern),
		errors.Is(err, recurrence.ErrUnboundedHorizon):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, lock.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, availability.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (s *HTTPServer) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", errBadRequest)
	}
	d, err := time.ParseInLocation(time.DateOnly, v, s.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date format; expected YYYY-MM-DD", errBadRequest)
	}
	return d, nil
}

func (s *HTTPServer) parseStart(date, clock string) (time.Time, error) {
	d, err := s.parseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if clock == "" {
		return time.Time{}, fmt.Errorf("%w: start_time is required", errBadRequest)
	}
	start, err := model.TimeOnDate(d, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return start, nil
}

func clocks(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format("15:04"))
	}
	return out
}
