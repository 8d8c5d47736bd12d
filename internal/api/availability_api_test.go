package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ezbiz/internal/booking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) book(t *testing.T, service string, start time.Time) {
	t.Helper()
	_, err := s.service.Book(context.Background(), booking.Request{Service: service, Start: start})
	require.NoError(t, err)
}

func TestHandleSlots(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.book(t, "Lawn Mowing", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	rec := srv.do(t, http.MethodGet, "/api/slots?date=2025-01-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SlotsResponse](t, rec)
	assert.Equal(t, "2025-01-06", resp.Date)
	assert.Equal(t, 60, resp.DurationMinutes)
	assert.Len(t, resp.Slots, 14)
	assert.Equal(t, "08:00", resp.Slots[0])
	assert.Equal(t, "16:00", resp.Slots[len(resp.Slots)-1])
	assert.NotContains(t, resp.Slots, "09:30")
	assert.NotContains(t, resp.Slots, "10:00")
	assert.NotContains(t, resp.Slots, "10:30")
	assert.Contains(t, resp.Slots, "11:00")
}

func TestHandleSlots_ServiceDuration(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodGet, "/api/slots?date=2025-01-06&service=Lawn+Mowing&service=Edging", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SlotsResponse](t, rec)
	assert.Equal(t, 90, resp.DurationMinutes)
	assert.Len(t, resp.Slots, 16)
	assert.Equal(t, "15:30", resp.Slots[len(resp.Slots)-1])

	rec = srv.do(t, http.MethodGet, "/api/slots?date=2025-01-06&duration=480", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"08:00", "08:30", "09:00"}, decode[SlotsResponse](t, rec).Slots)
}

func TestHandleSlots_ClosedDays(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, date := range []string{"2025-01-04", "2025-01-08"} {
		rec := srv.do(t, http.MethodGet, "/api/slots?date="+date, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[SlotsResponse](t, rec).Slots, date)
	}
}

func TestHandleSlots_Validation(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		path string
	}{
		{"missing date", "/api/slots"},
		{"bad date", "/api/slots?date=06-01-2025"},
		{"bad duration", "/api/slots?date=2025-01-06&duration=abc"},
		{"negative duration", "/api/slots?date=2025-01-06&duration=-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestHandleCheck(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.book(t, "Lawn Mowing", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name      string
		req       CheckRequest
		available bool
		code      string
		reason    string
	}{
		{"free", CheckRequest{Date: "2025-01-06", StartTime: "13:00"}, true, "ok", ""},
		{"conflict", CheckRequest{Date: "2025-01-06", StartTime: "09:30"}, false, "slot_conflict", "10:00"},
		{"past close", CheckRequest{Date: "2025-01-06", StartTime: "16:00", Services: []string{"Deep Clean"}}, false, "out_of_hours", "16:00-18:00"},
		{"holiday", CheckRequest{Date: "2025-01-08", StartTime: "10:00"}, false, "out_of_hours", "Staff day"},
		{"override duration", CheckRequest{Date: "2025-01-06", StartTime: "08:00", DurationMinutes: 150}, false, "slot_conflict", "10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/availability/check", tt.req)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[CheckResponse](t, rec)
			assert.Equal(t, tt.available, resp.Available)
			assert.Equal(t, tt.code, resp.Code)
			assert.Contains(t, resp.Reason, tt.reason)
		})
	}
}

func TestHandleCheck_BadRequest(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/availability/check", CheckRequest{Date: "2025-01-06", StartTime: "7pm"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/availability/check", CheckRequest{Date: "2025-01-06"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecurrencePreview(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.book(t, "Lawn Mowing", time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC))

	rec := srv.do(t, http.MethodPost, "/api/recurrence/preview", PreviewRequest{
		CheckRequest: CheckRequest{Date: "2025-01-06", StartTime: "10:00"},
		Pattern:      "weekly",
		Occurrences:  6,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[PreviewResponse](t, rec)
	assert.Equal(t, "weekly", resp.Pattern)
	assert.Equal(t, "10:00", resp.Start)
	assert.Equal(t, []string{"2025-01-13", "2025-01-27", "2025-02-03", "2025-02-10", "2025-02-17"}, resp.Accepted)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "2025-01-20", resp.Skipped[0].Date)
	assert.Equal(t, "slot_conflict", resp.Skipped[0].Code)
}

func TestHandleRecurrencePreview_MonthlyClamp(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/recurrence/preview", PreviewRequest{
		CheckRequest: CheckRequest{Date: "2025-01-31", StartTime: "09:00"},
		Pattern:      "monthly",
		Occurrences:  3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[PreviewResponse](t, rec)
	assert.Equal(t, []string{"2025-02-28", "2025-03-31", "2025-04-30"}, resp.Accepted)
	assert.Empty(t, resp.Skipped)
}

func TestHandleRecurrencePreview_Validation(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/recurrence/preview", PreviewRequest{
		CheckRequest: CheckRequest{Date: "2025-01-06", StartTime: "10:00"},
		Pattern:      "daily",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/recurrence/preview", PreviewRequest{
		CheckRequest: CheckRequest{Date: "2025-01-06", StartTime: "10:00"},
		Pattern:      "weekly",
		Occurrences:  1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
