package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for booking storage. Dates and clock times are stored as
// text and interpreted in loc.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger zerolog.Logger
}

// NewDB opens database at path and runs migrations.
func NewDB(path string, loc *time.Location, logger zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{
		DB:     db,
		path:   path,
		loc:    loc,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Path is the database file location.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			is_add_on BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			series_id TEXT,
			customer_id INTEGER NOT NULL DEFAULT 0,
			address_id INTEGER NOT NULL DEFAULT 0,
			service_name TEXT NOT NULL,
			add_ons TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			status TEXT NOT NULL DEFAULT 'pending',
			comment TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// At most one holding booking may start at a given date and time.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(date, start_time) WHERE status != 'canceled'`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_series ON bookings(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_active ON services(is_active)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
