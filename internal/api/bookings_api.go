package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/metrics"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// CreateBookingRequest is the request body for POST /api/bookings. A
// non-empty pattern books a recurring series anchored at date/start_time.
type CreateBookingRequest struct {
	CustomerID      int64    `json:"customer_id"`
	AddressID       int64    `json:"address_id"`
	Service         string   `json:"service"`
	AddOns          []string `json:"add_ons,omitempty"`
	Date            string   `json:"date"`       // Format: YYYY-MM-DD
	StartTime       string   `json:"start_time"` // Format: HH:MM
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	Pattern         string   `json:"pattern,omitempty"`
	Occurrences     int      `json:"occurrences,omitempty"`
}

// BookingResponse is one committed booking.
type BookingResponse struct {
	ID              int64    `json:"id"`
	SeriesID        string   `json:"series_id,omitempty"`
	CustomerID      int64    `json:"customer_id"`
	AddressID       int64    `json:"address_id"`
	Service         string   `json:"service"`
	AddOns          []string `json:"add_ons,omitempty"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	Comment         string   `json:"comment,omitempty"`
}

// CreateBookingResponse carries the committed bookings and, for a series,
// the dates that were skipped.
type CreateBookingResponse struct {
	SeriesID string            `json:"series_id,omitempty"`
	Bookings []BookingResponse `json:"bookings"`
	Skipped  []SkippedDate     `json:"skipped,omitempty"`
}

// SeriesErrorResponse is returned when a series failed part way and the
// bookings it made could not all be rolled back. Bookings lists the ones
// still held.
type SeriesErrorResponse struct {
	ErrorResponse
	SeriesID string            `json:"series_id"`
	Bookings []BookingResponse `json:"bookings"`
}

// handleCreateBooking commits a single or recurring booking.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var body CreateBookingRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	start, err := s.parseStart(body.Date, body.StartTime)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	req := booking.Request{
		CustomerID:      body.CustomerID,
		AddressID:       body.AddressID,
		Service:         body.Service,
		AddOns:          body.AddOns,
		Start:           start,
		DurationMinutes: body.DurationMinutes,
		Comment:         body.Comment,
	}

	if body.Pattern == "" {
		b, err := s.service.Book(r.Context(), req)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, CreateBookingResponse{
			Bookings: []BookingResponse{toBookingResponse(*b)},
		})
		return
	}

	pattern, err := recurrence.ParsePattern(body.Pattern)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	horizon, err := s.service.Horizon(start, body.Occurrences)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	series, err := s.service.BookRecurring(r.Context(), req, pattern, horizon)
	if err != nil && series != nil {
		status, code := statusFor(err)
		s.requestLogger(r).Error().Err(err).
			Str("series_id", series.SeriesID).
			Int("held", len(series.Bookings)).
			Msg("recurring series interrupted")
		writeJSON(w, r, status, SeriesErrorResponse{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: code},
			SeriesID:      series.SeriesID,
			Bookings:      toBookingResponses(series.Bookings),
		})
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, CreateBookingResponse{
		SeriesID: series.SeriesID,
		Bookings: toBookingResponses(series.Bookings),
		Skipped:  skippedDates(series.Skipped),
	})
}

// handleCancelBooking cancels one booking and frees its slot.
// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeErr(w, r, fmt.Errorf("%w: invalid booking id", errBadRequest))
		return
	}

	b, err := s.service.Cancel(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBookingResponse(*b))
}

// handleListServices returns the active service catalog.
// GET /api/services
func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_services")

	services, err := s.opts.Catalog.ListServices(r.Context(), true)
	if err != nil {
		s.writeErr(w, r, fmt.Errorf("list services: %w: %w", availability.ErrStorageUnavailable, err))
		return
	}
	writeJSON(w, r, http.StatusOK, services)
}

func toBookingResponse(b model.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		SeriesID:        b.SeriesID,
		CustomerID:      b.CustomerID,
		AddressID:       b.AddressID,
		Service:         b.ServiceName,
		AddOns:          b.AddOns,
		Date:            b.Start.Format(time.DateOnly),
		StartTime:       b.Start.Format("15:04"),
		EndTime:         b.End().Format("15:04"),
		DurationMinutes: b.EffectiveDuration(),
		Status:          b.Status,
		Comment:         b.Comment,
	}
}

func toBookingResponses(in []model.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(in))
	for _, b := range in {
		out = append(out, toBookingResponse(b))
	}
	return out
}
