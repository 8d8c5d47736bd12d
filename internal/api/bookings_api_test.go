package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/config"
	"ezbiz/internal/database"
	"ezbiz/internal/lock"
	"ezbiz/internal/model"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateBooking_Single(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := CreateBookingRequest{
		CustomerID: 12,
		AddressID:  4,
		Service:    "Lawn Mowing",
		AddOns:     []string{"Edging"},
		Date:       "2025-01-06",
		StartTime:  "10:00",
		Comment:    "dog in the yard",
	}
	rec := srv.do(t, http.MethodPost, "/api/bookings", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[CreateBookingResponse](t, rec)
	assert.Empty(t, resp.SeriesID)
	require.Len(t, resp.Bookings, 1)

	b := resp.Bookings[0]
	assert.NotZero(t, b.ID)
	assert.Equal(t, "2025-01-06", b.Date)
	assert.Equal(t, "10:00", b.StartTime)
	assert.Equal(t, "11:30", b.EndTime)
	assert.Equal(t, 90, b.DurationMinutes)
	assert.Equal(t, "confirmed", b.Status)

	stored, err := srv.db.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "dog in the yard", stored.Comment)
	assert.Equal(t, []string{"Edging"}, stored.AddOns)

	// The same slot again conflicts.
	rec = srv.do(t, http.MethodPost, "/api/bookings", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_conflict", decode[ErrorResponse](t, rec).Code)
}

func TestHandleCreateBooking_Rejections(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name   string
		req    CreateBookingRequest
		status int
		code   string
	}{
		{"missing service", CreateBookingRequest{Date: "2025-01-06", StartTime: "10:00"}, http.StatusBadRequest, "invalid_request"},
		{"bad date", CreateBookingRequest{Service: "Lawn Mowing", Date: "tomorrow", StartTime: "10:00"}, http.StatusBadRequest, "invalid_request"},
		{"past date", CreateBookingRequest{Service: "Lawn Mowing", Date: "2024-12-30", StartTime: "10:00"}, http.StatusBadRequest, "invalid_request"},
		{"before open", CreateBookingRequest{Service: "Lawn Mowing", Date: "2025-01-06", StartTime: "07:30"}, http.StatusUnprocessableEntity, "out_of_hours"},
		{"weekend", CreateBookingRequest{Service: "Lawn Mowing", Date: "2025-01-05", StartTime: "10:00"}, http.StatusUnprocessableEntity, "out_of_hours"},
		{"unknown pattern", CreateBookingRequest{Service: "Lawn Mowing", Date: "2025-01-06", StartTime: "10:00", Pattern: "yearly"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/bookings", tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestHandleCreateBooking_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := srv.do(t, http.MethodPost, "/api/bookings", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateBooking_Recurring(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.book(t, "Edging", time.Date(2025, 1, 20, 10, 30, 0, 0, time.UTC))

	rec := srv.do(t, http.MethodPost, "/api/bookings", CreateBookingRequest{
		CustomerID:  3,
		Service:     "Lawn Mowing",
		Date:        "2025-01-06",
		StartTime:   "10:00",
		Pattern:     "Bi-Weekly",
		Occurrences: 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[CreateBookingResponse](t, rec)
	require.NotEmpty(t, resp.SeriesID)

	dates := make([]string, 0, len(resp.Bookings))
	for _, b := range resp.Bookings {
		assert.Equal(t, resp.SeriesID, b.SeriesID)
		assert.Equal(t, "10:00", b.StartTime)
		dates = append(dates, b.Date)
	}
	assert.Equal(t, []string{"2025-01-06", "2025-02-03", "2025-02-17", "2025-03-03"}, dates)

	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "2025-01-20", resp.Skipped[0].Date)
	assert.Equal(t, "slot_conflict", resp.Skipped[0].Code)

	series, err := srv.db.BookingsBySeries(context.Background(), resp.SeriesID)
	require.NoError(t, err)
	assert.Len(t, series, 4)
}

func TestHandleCancelBooking(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := CreateBookingRequest{Service: "Lawn Mowing", Date: "2025-01-06", StartTime: "10:00"}
	rec := srv.do(t, http.MethodPost, "/api/bookings", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[CreateBookingResponse](t, rec).Bookings[0].ID

	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "canceled", decode[BookingResponse](t, rec).Status)

	// The freed slot can be booked again.
	rec = srv.do(t, http.MethodPost, "/api/bookings", req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/bookings/999/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)

	rec = srv.do(t, http.MethodPost, "/api/bookings/abc/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListServices(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodGet, "/api/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	services := decode[[]database.Service](t, rec)
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}
	assert.Equal(t, []string{"Deep Clean", "Edging", "Lawn Mowing"}, names)
}

// brokenStorage lets the first booking through, then fails every write.
type brokenStorage struct {
	*database.DB
	mu      sync.Mutex
	commits int
}

func (b *brokenStorage) PersistBooking(ctx context.Context, bk *model.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.commits > 0 {
		return errors.New("disk I/O error")
	}
	b.commits++
	return b.DB.PersistBooking(ctx, bk)
}

func (b *brokenStorage) UpdateStatus(context.Context, int64, string) error {
	return errors.New("disk I/O error")
}

func TestHandleCreateBooking_RecurringReportsHeldBookings(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "broken.db"), time.UTC, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hours := testHours()
	require.NoError(t, db.SyncServicesFromConfig(context.Background(), hours.Services))

	repo := &brokenStorage{DB: db}
	now := func() time.Time { return testNow }
	engine := availability.NewEngine(repo, config.NewHoursSource(hours), logger)
	svc := booking.NewService(repo, engine, lock.NewMemoryLocker(), nil, booking.Options{Now: now}, logger)
	srv := &testServer{
		HTTPServer: NewHTTPServer(engine, svc, booking.NewFlow(engine, svc, logger), booking.NewDraftStore(time.Hour),
			Options{Location: time.UTC, Now: now}, logger),
		db: db,
	}

	rec := srv.do(t, http.MethodPost, "/api/bookings", CreateBookingRequest{
		Service:     "Lawn Mowing",
		Date:        "2025-01-06",
		StartTime:   "10:00",
		Pattern:     "weekly",
		Occurrences: 2,
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

	resp := decode[SeriesErrorResponse](t, rec)
	assert.Equal(t, "storage_unavailable", resp.Code)
	require.NotEmpty(t, resp.SeriesID)
	require.Len(t, resp.Bookings, 1)
	assert.Equal(t, "2025-01-06", resp.Bookings[0].Date)
	assert.Equal(t, resp.SeriesID, resp.Bookings[0].SeriesID)

	held, err := db.BookingsBySeries(context.Background(), resp.SeriesID)
	require.NoError(t, err)
	assert.Len(t, held, 1)
}
