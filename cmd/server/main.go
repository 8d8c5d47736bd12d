package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ezbiz/internal/api"
	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/config"
	"ezbiz/internal/database"
	"ezbiz/internal/events"
	"ezbiz/internal/lock"
	"ezbiz/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("EZBIZ_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Hours.Timezone).Msg("unknown timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, loc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	hours := config.NewHoursSource(nil)
	err = config.WatchHours(ctx, cfg.Hours.Path, cfg.HoursReloadInterval(),
		func(h *config.HoursConfig) {
			hours.Set(h)
			if err := db.SyncServicesFromConfig(ctx, h.Services); err != nil {
				logger.Error().Err(err).Msg("sync service catalog")
			}
			logger.Info().Str("hours", h.String()).Msg("business hours loaded")
		},
		func(err error) {
			logger.Error().Err(err).Str("path", cfg.Hours.Path).Msg("reload hours")
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Hours.Path).Msg("load hours")
	}

	var (
		locker lock.Locker = lock.NewMemoryLocker()
		rdb    *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		redisLock, err := lock.NewRedisLock(ctx, rdb)
		if err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("redis lock")
		}
		locker = redisLock
	}

	bus := events.NewEventBus()
	subscribeLogging(bus, logger)

	engine := availability.NewEngine(db, hours, logger)
	service := booking.NewService(db, engine, locker, bus, booking.Options{
		LockTTL:        cfg.BookingLockTTL(),
		LockWait:       cfg.BookingLockWait(),
		HorizonDays:    cfg.RecurrenceHorizonDays(),
		MaxOccurrences: cfg.RecurrenceMaxOccurrences(),
		MaxAdvance:     cfg.BookingMaxAdvance(),
	}, logger)
	flow := booking.NewFlow(engine, service, logger)

	drafts := booking.NewDraftStore(cfg.WorkflowTTL())
	go drafts.RunCleanup(ctx, time.Minute)

	backups := database.NewBackupService(db, cfg.Backup, logger)
	go backups.Start(ctx)

	checks := readyChecks(db, rdb)
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, checks, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewHTTPServer(engine, service, flow, drafts, api.Options{
		Address:         cfg.HTTP.Address,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		Location:        loc,
		ReadyChecks:     checks,
		Catalog:         db,
	}, logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("db", db.Path()).Str("timezone", loc.String()).Msg("scheduling service started")
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
	logger.Info().Msg("scheduling service stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Logging.Pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func subscribeLogging(bus *events.EventBus, logger zerolog.Logger) {
	log := logger.With().Str("component", "events").Logger()

	bus.Subscribe(events.BookingCommitted, func(e events.Event) error {
		var p booking.CommittedEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		log.Debug().Int64("event_id", e.ID).Int64("booking_id", p.BookingID).Time("start", p.Start).Msg(e.Type)
		return nil
	})
	bus.Subscribe(events.BookingCanceled, func(e events.Event) error {
		var p booking.CanceledEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		log.Debug().Int64("event_id", e.ID).Int64("booking_id", p.BookingID).Time("start", p.Start).Msg(e.Type)
		return nil
	})
	bus.Subscribe(events.OccurrenceSkipped, func(e events.Event) error {
		var p booking.SkippedEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		log.Info().Int64("event_id", e.ID).Str("series_id", p.SeriesID).Time("start", p.Start).Str("reason", p.Reason).Msg(e.Type)
		return nil
	})
	bus.Subscribe(events.WorkflowTransition, func(e events.Event) error {
		var p booking.TransitionEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		log.Debug().Str("workflow_id", p.WorkflowID).Str("from", string(p.From)).Str("to", string(p.To)).Msg(e.Type)
		return nil
	})
}

func readyChecks(db *database.DB, rdb *redis.Client) map[string]api.ReadyCheck {
	checks := map[string]api.ReadyCheck{
		"database": db.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func startHealthServer(ctx context.Context, port int, checks map[string]api.ReadyCheck, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctxPing); err != nil {
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msgf("%s server error", name)
	}
}
