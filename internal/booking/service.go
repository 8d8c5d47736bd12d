package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/events"
	"ezbiz/internal/lock"
	"ezbiz/internal/metrics"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidRequest = errors.New("invalid booking request")

// Repository is the storage the commit path needs.
type Repository interface {
	availability.Store
	PersistBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// Publisher receives domain events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

type Options struct {
	LockTTL        time.Duration
	LockWait       time.Duration
	HorizonDays    int
	MaxOccurrences int
	MaxAdvance     time.Duration
	Now            func() time.Time
}

func (o *Options) applyDefaults() {
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Second
	}
	if o.LockWait <= 0 {
		o.LockWait = 2 * time.Second
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = 180
	}
	if o.MaxOccurrences <= 0 {
		o.MaxOccurrences = 52
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Request describes one appointment: a primary service plus optional add-ons.
type Request struct {
	CustomerID      int64
	AddressID       int64
	Service         string
	AddOns          []string
	Start           time.Time
	DurationMinutes int
	Comment         string
}

func (r Request) serviceNames() []string {
	return append([]string{r.Service}, r.AddOns...)
}

// SeriesResult is the outcome of a recurring booking.
type SeriesResult struct {
	SeriesID string                 `json:"series_id"`
	Bookings []model.Booking        `json:"bookings"`
	Skipped  []availability.Skipped `json:"skipped"`
}

// CommittedEvent is the payload of events.BookingCommitted.
type CommittedEvent struct {
	BookingID       int64     `json:"booking_id"`
	SeriesID        string    `json:"series_id,omitempty"`
	CustomerID      int64     `json:"customer_id"`
	Service         string    `json:"service"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// CanceledEvent is the payload of events.BookingCanceled.
type CanceledEvent struct {
	BookingID int64     `json:"booking_id"`
	SeriesID  string    `json:"series_id,omitempty"`
	Start     time.Time `json:"start"`
}

// SkippedEvent is the payload of events.OccurrenceSkipped.
type SkippedEvent struct {
	SeriesID string    `json:"series_id"`
	Start    time.Time `json:"start"`
	Code     string    `json:"code"`
	Reason   string    `json:"reason"`
}

// Service validates and persists bookings. Writes for one date are
// serialized through the locker.
type Service struct {
	repo   Repository
	engine *availability.Engine
	locker lock.Locker
	events Publisher
	opts   Options
	logger zerolog.Logger
}

func NewService(repo Repository, engine *availability.Engine, locker lock.Locker, pub Publisher, opts Options, logger zerolog.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		repo:   repo,
		engine: engine,
		locker: locker,
		events: pub,
		opts:   opts,
		logger: logger.With().Str("component", "booking").Logger(),
	}
}

// Horizon returns the default time horizon for a series anchored at start,
// optionally capped at occurrences dates.
func (s *Service) Horizon(start time.Time, occurrences int) (recurrence.Horizon, error) {
	if occurrences < 0 || occurrences > s.opts.MaxOccurrences {
		return recurrence.Horizon{}, fmt.Errorf("%w: occurrences must be between 0 and %d", ErrInvalidRequest, s.opts.MaxOccurrences)
	}
	return recurrence.Days(start, s.opts.HorizonDays).WithCount(occurrences), nil
}

// Book commits a single appointment.
func (s *Service) Book(ctx context.Context, req Request) (*model.Booking, error) {
	duration, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	b, err := s.commit(ctx, req, req.Start, duration, "")
	if err != nil {
		return nil, err
	}
	metrics.IncBookingCommitted("single")
	return b, nil
}

// BookRecurring commits the anchor appointment and then every date of the
// series. A failure on the anchor aborts; a user-correctable failure on a
// later date is recorded in Skipped and the series continues. Any other
// failure cancels the bookings made so far, so the same request can be
// retried. If that cleanup fails too, the result lists the bookings that are
// still held alongside the error.
func (s *Service) BookRecurring(ctx context.Context, req Request, pattern recurrence.Pattern, horizon recurrence.Horizon) (*SeriesResult, error) {
	duration, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	dates, err := recurrence.Dates(req.Start, pattern, horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	result := &SeriesResult{
		SeriesID: uuid.NewString(),
		Bookings: []model.Booking{},
		Skipped:  []availability.Skipped{},
	}

	anchor, err := s.commit(ctx, req, req.Start, duration, result.SeriesID)
	if err != nil {
		return nil, err
	}
	result.Bookings = append(result.Bookings, *anchor)
	metrics.IncBookingCommitted("series")

	for start := range dates {
		b, err := s.commit(ctx, req, start, duration, result.SeriesID)
		if err == nil {
			result.Bookings = append(result.Bookings, *b)
			metrics.IncBookingCommitted("series")
			continue
		}
		if !availability.IsUserCorrectable(err) {
			err = fmt.Errorf("book %s: %w", start.Format(time.DateOnly), err)
			return s.rollback(ctx, result, err)
		}

		skipped := availability.Skipped{Start: start, Code: availability.ReasonCode(err), Reason: err.Error()}
		result.Skipped = append(result.Skipped, skipped)

		s.logger.Warn().
			Str("series_id", result.SeriesID).
			Time("start", start).
			Str("code", skipped.Code).
			Msg("recurring booking skipped")
		metrics.IncOccurrenceSkipped(skipped.Code)
		s.publish(events.OccurrenceSkipped, SkippedEvent{
			SeriesID: result.SeriesID,
			Start:    start,
			Code:     skipped.Code,
			Reason:   skipped.Reason,
		})
	}

	s.logger.Info().
		Str("series_id", result.SeriesID).
		Str("pattern", string(pattern)).
		Int("booked", len(result.Bookings)).
		Int("skipped", len(result.Skipped)).
		Msg("recurring series booked")
	return result, nil
}

func (s *Service) rollback(ctx context.Context, result *SeriesResult, cause error) (*SeriesResult, error) {
	ctx = context.WithoutCancel(ctx)

	held := make([]model.Booking, 0)
	for _, b := range result.Bookings {
		if _, err := s.Cancel(ctx, b.ID); err != nil {
			s.logger.Error().Err(err).
				Int64("booking_id", b.ID).
				Str("series_id", result.SeriesID).
				Msg("roll back series booking")
			held = append(held, b)
		}
	}

	s.logger.Warn().Err(cause).
		Str("series_id", result.SeriesID).
		Int("rolled_back", len(result.Bookings)-len(held)).
		Int("held", len(held)).
		Msg("recurring series interrupted")

	if len(held) == 0 {
		return nil, cause
	}
	result.Bookings = held
	return result, fmt.Errorf("%w; %d bookings of series %s could not be rolled back", cause, len(held), result.SeriesID)
}

// Cancel marks a booking canceled, which frees its interval for new
// bookings. Canceling a canceled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		metrics.IncStorageError("get_booking")
		return nil, fmt.Errorf("get booking: %w: %w", availability.ErrStorageUnavailable, err)
	}
	if !b.IsHolding() {
		return b, nil
	}

	release, err := lock.Acquire(ctx, s.locker, lock.DateKey(b.Start), s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.UpdateStatus(ctx, id, model.StatusCanceled); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		metrics.IncStorageError("update_status")
		return nil, fmt.Errorf("cancel booking: %w: %w", availability.ErrStorageUnavailable, err)
	}
	b.Status = model.StatusCanceled
	metrics.IncBookingCanceled()

	s.logger.Info().
		Int64("booking_id", id).
		Str("series_id", b.SeriesID).
		Time("start", b.Start).
		Msg("booking canceled")
	s.publish(events.BookingCanceled, CanceledEvent{
		BookingID: id,
		SeriesID:  b.SeriesID,
		Start:     b.Start,
	})
	return b, nil
}

func (s *Service) prepare(ctx context.Context, req Request) (int, error) {
	if req.Service == "" {
		return 0, fmt.Errorf("%w: service is required", ErrInvalidRequest)
	}
	if req.Start.IsZero() {
		return 0, fmt.Errorf("%w: start is required", ErrInvalidRequest)
	}
	// Storage keeps HH:MM, so the validated instant must be the stored one.
	if req.Start.Second() != 0 || req.Start.Nanosecond() != 0 {
		return 0, fmt.Errorf("%w: start %s is not on a whole minute", ErrInvalidRequest, req.Start.Format(time.TimeOnly))
	}

	now := s.opts.Now()
	if req.Start.Before(now) {
		return 0, fmt.Errorf("%w: start %s is in the past", ErrInvalidRequest, req.Start.Format(time.DateTime))
	}
	if s.opts.MaxAdvance > 0 && req.Start.After(now.Add(s.opts.MaxAdvance)) {
		return 0, fmt.Errorf("%w: start %s is too far ahead", ErrInvalidRequest, req.Start.Format(time.DateOnly))
	}

	if req.DurationMinutes > 0 {
		return req.DurationMinutes, nil
	}
	return s.engine.DurationFor(ctx, req.serviceNames())
}

func (s *Service) commit(ctx context.Context, req Request, start time.Time, duration int, seriesID string) (*model.Booking, error) {
	release, err := lock.Acquire(ctx, s.locker, lock.DateKey(start), s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.engine.CheckAt(ctx, start, duration)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, res.Error()
	}

	b := &model.Booking{
		SeriesID:        seriesID,
		CustomerID:      req.CustomerID,
		AddressID:       req.AddressID,
		ServiceName:     req.Service,
		AddOns:          req.AddOns,
		Start:           start,
		DurationMinutes: duration,
		Status:          model.StatusConfirmed,
		Comment:         req.Comment,
	}
	if err := s.repo.PersistBooking(ctx, b); err != nil {
		if errors.Is(err, availability.ErrSlotConflict) {
			return nil, err
		}
		metrics.IncStorageError("persist_booking")
		return nil, fmt.Errorf("persist booking: %w: %w", availability.ErrStorageUnavailable, err)
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("series_id", seriesID).
		Time("start", start).
		Int("duration", duration).
		Msg("booking committed")
	s.publish(events.BookingCommitted, CommittedEvent{
		BookingID:       b.ID,
		SeriesID:        seriesID,
		CustomerID:      b.CustomerID,
		Service:         b.ServiceName,
		Start:           b.Start,
		DurationMinutes: duration,
	})
	return b, nil
}

func (s *Service) publish(eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}
