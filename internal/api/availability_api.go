package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/metrics"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/go-chi/render"
)

// SlotsResponse is the response for GET /api/slots.
type SlotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

// CheckRequest is the request body for POST /api/availability/check.
type CheckRequest struct {
	Date            string   `json:"date"`       // Format: YYYY-MM-DD
	StartTime       string   `json:"start_time"` // Format: HH:MM
	Services        []string `json:"services,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"` // Overrides services when set
}

// CheckResponse reports a validation outcome. A rejected slot is still a 200.
type CheckResponse struct {
	Available       bool   `json:"available"`
	Code            string `json:"code"`
	Reason          string `json:"reason,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// PreviewRequest is the request body for POST /api/recurrence/preview.
type PreviewRequest struct {
	CheckRequest
	Pattern     string `json:"pattern"`
	Occurrences int    `json:"occurrences,omitempty"`
}

type SkippedDate struct {
	Date   string `json:"date"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// PreviewResponse lists the dates a recurring booking would take.
type PreviewResponse struct {
	Pattern  string        `json:"pattern"`
	Start    string        `json:"start_time"`
	Accepted []string      `json:"accepted"`
	Skipped  []SkippedDate `json:"skipped"`
}

// handleSlots returns open start times for a date.
// GET /api/slots?date=YYYY-MM-DD&service=Lawn+Mowing&service=Edging&duration=90
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	q := r.URL.Query()
	date, err := s.parseDate(q.Get("date"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	override := 0
	if v := q.Get("duration"); v != "" {
		override, err = strconv.Atoi(v)
		if err != nil || override < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "duration must be a non-negative number of minutes")
			return
		}
	}

	duration, err := s.duration(r.Context(), q["service"], override)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	slots, err := s.engine.GetAvailableSlots(r.Context(), date, duration)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	now := s.opts.Now()
	slots = slices.DeleteFunc(slots, func(t time.Time) bool { return t.Before(now) })

	writeJSON(w, r, http.StatusOK, SlotsResponse{
		Date:            date.Format(time.DateOnly),
		DurationMinutes: duration,
		Slots:           clocks(slots),
	})
}

// handleCheck validates one requested slot.
// POST /api/availability/check
func (s *HTTPServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_check")

	var req CheckRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	start, err := s.parseStart(req.Date, req.StartTime)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	duration, err := s.duration(r.Context(), req.Services, req.DurationMinutes)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	res, err := s.engine.CheckAt(r.Context(), start, duration)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, CheckResponse{
		Available:       res.OK,
		Code:            availability.ReasonCode(res.Err),
		Reason:          res.Reason,
		DurationMinutes: duration,
	})
}

// handleRecurrencePreview validates every date of a prospective series
// without booking anything.
// POST /api/recurrence/preview
func (s *HTTPServer) handleRecurrencePreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("recurrence_preview")

	var req PreviewRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	start, err := s.parseStart(req.Date, req.StartTime)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	pattern, err := recurrence.ParsePattern(req.Pattern)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	horizon, err := s.service.Horizon(start, req.Occurrences)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	duration, err := s.duration(r.Context(), req.Services, req.DurationMinutes)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	plan, err := s.engine.PlanRecurring(r.Context(), start, duration, pattern, horizon)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	resp := PreviewResponse{
		Pattern:  string(pattern),
		Start:    start.Format("15:04"),
		Accepted: make([]string, 0, len(plan.Accepted)),
		Skipped:  skippedDates(plan.Skipped),
	}
	for _, d := range plan.Accepted {
		resp.Accepted = append(resp.Accepted, d.Format(time.DateOnly))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *HTTPServer) duration(ctx context.Context, services []string, override int) (int, error) {
	if override > 0 {
		return override, nil
	}
	d, err := s.engine.DurationFor(ctx, services)
	if err != nil {
		return 0, fmt.Errorf("resolve duration: %w", err)
	}
	return model.NormalizeDuration(d), nil
}

func skippedDates(in []availability.Skipped) []SkippedDate {
	out := make([]SkippedDate, 0, len(in))
	for _, sk := range in {
		out = append(out, SkippedDate{
			Date:   sk.Start.Format(time.DateOnly),
			Code:   sk.Code,
			Reason: sk.Reason,
		})
	}
	return out
}
