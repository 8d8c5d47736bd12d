// Package api exposes the availability engine and the booking workflow over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Catalog lists the services customers can book.
type Catalog interface {
	ListServices(ctx context.Context, activeOnly bool) ([]database.Service, error)
}

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type Options struct {
	Address         string
	RateLimitPerSec float64
	RateLimitBurst  int
	Location        *time.Location
	Now             func() time.Time
	ReadyChecks     map[string]ReadyCheck
	Catalog         Catalog
}

// HTTPServer serves the page-handler API.
type HTTPServer struct {
	engine  *availability.Engine
	service *booking.Service
	flow    *booking.Flow
	drafts  *booking.DraftStore
	opts    Options
	logger  zerolog.Logger
	server  *http.Server
	limiter *rateLimiter

	background context.Context
	stop       context.CancelFunc
}

func NewHTTPServer(
	engine *availability.Engine,
	service *booking.Service,
	flow *booking.Flow,
	drafts *booking.DraftStore,
	opts Options,
	logger zerolog.Logger,
) *HTTPServer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &HTTPServer{
		engine:  engine,
		service: service,
		flow:    flow,
		drafts:  drafts,
		opts:    opts,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.background, s.stop = context.WithCancel(context.Background())
	if opts.RateLimitPerSec > 0 {
		s.limiter = newRateLimiter(opts.RateLimitPerSec, opts.RateLimitBurst, s.logger)
	}

	s.server = &http.Server{
		Addr:              opts.Address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/slots", s.handleSlots)
		r.Post("/availability/check", s.handleCheck)
		r.Post("/recurrence/preview", s.handleRecurrencePreview)
		r.Post("/bookings", s.handleCreateBooking)
		r.Post("/bookings/{id}/cancel", s.handleCancelBooking)
		if s.opts.Catalog != nil {
			r.Get("/services", s.handleListServices)
		}

		r.Post("/workflows", s.handleCreateWorkflow)
		r.Get("/workflows/{id}", s.handleGetWorkflow)
		r.Post("/workflows/{id}/input", s.handleWorkflowInput)
	})
	return r
}

// Handler returns the routed handler, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	if s.limiter != nil {
		go s.limiter.RunCleanup(s.background, time.Minute)
	}
	s.logger.Info().Str("address", s.opts.Address).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.stop()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.requestLogger(r).Warn().Interface("failed", failed).Msg("not ready")
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) requestLogger(r *http.Request) *zerolog.Logger {
	l := s.logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Logger()
	return &l
}
