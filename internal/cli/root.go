// Package cli implements the schedulectl operator commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/booking"
	"ezbiz/internal/config"
	"ezbiz/internal/database"
	"ezbiz/internal/lock"
	"ezbiz/internal/model"
	"ezbiz/internal/report"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// Services used by the commands. They are built from the config file on
// first use unless already set.
var (
	engine         *availability.Engine
	bookingService *booking.Service
	exporter       *report.Exporter
	location       = time.Local
	closers        []func() error
)

var rootCmd = &cobra.Command{
	Use:           "schedulectl",
	Short:         "Inspect availability and manage recurring bookings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if engine != nil {
			return nil
		}
		return setup(cmd.Context())
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("EZBIZ_CONFIG_PATH"), "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(ctx context.Context) error {
	logger := zerolog.Nop()
	if verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	hours, err := config.LoadHours(cfg.Hours.Path)
	if err != nil {
		return fmt.Errorf("load hours: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, loc, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	closers = append(closers, db.Close)
	if err := db.SyncServicesFromConfig(ctx, hours.Services); err != nil {
		return fmt.Errorf("sync services: %w", err)
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		closers = append(closers, rdb.Close)
		if locker, err = lock.NewRedisLock(ctx, rdb); err != nil {
			return err
		}
	}

	location = loc
	engine = availability.NewEngine(db, config.NewHoursSource(hours), logger)
	bookingService = booking.NewService(db, engine, locker, nil, booking.Options{
		LockTTL:        cfg.BookingLockTTL(),
		LockWait:       cfg.BookingLockWait(),
		HorizonDays:    cfg.RecurrenceHorizonDays(),
		MaxOccurrences: cfg.RecurrenceMaxOccurrences(),
		MaxAdvance:     cfg.BookingMaxAdvance(),
	}, logger)
	exporter = report.NewExporter(db, logger)
	return nil
}

func teardown() error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	return firstErr
}

func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return d, nil
}

func parseStart(date, clock string) (time.Time, error) {
	d, err := parseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return model.TimeOnDate(d, clock)
}

func resolveDuration(ctx context.Context, services []string, override int) (int, error) {
	if override > 0 {
		return override, nil
	}
	return engine.DurationFor(ctx, services)
}
