package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/model"

	"github.com/mattn/go-sqlite3"
)

var ErrNotFound = model.ErrNotFound

const bookingColumns = `id, COALESCE(series_id, ''), customer_id, address_id, service_name, add_ons,
	date, start_time, duration_minutes, status, comment, created_at, updated_at`

// PersistBooking inserts b and fills its ID and timestamps. A second holding
// booking at the same date and start time fails with availability.ErrSlotConflict.
func (db *DB) PersistBooking(ctx context.Context, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if b.DurationMinutes <= 0 {
		b.DurationMinutes = model.DefaultDurationMinutes
	}

	addOns, err := encodeAddOns(b.AddOns)
	if err != nil {
		return err
	}

	start := b.Start.In(db.loc)
	date := start.Format(time.DateOnly)
	clock := start.Format("15:04")
	now := time.Now().UTC()

	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (series_id, customer_id, address_id, service_name, add_ons,
			date, start_time, duration_minutes, status, comment, created_at, updated_at)
		VALUES (NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SeriesID, b.CustomerID, b.AddressID, b.ServiceName, addOns,
		date, clock, b.DurationMinutes, b.Status, b.Comment, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s is already booked", availability.ErrSlotConflict, date, clock)
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// BookingsForDate returns holding bookings on date ordered by start time.
func (db *DB) BookingsForDate(ctx context.Context, date time.Time) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = ? AND status != ?
		ORDER BY start_time`,
		date.Format(time.DateOnly), model.StatusCanceled,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings for date: %w", err)
	}
	return db.scanBookings(rows)
}

// BookingsBetween returns bookings of any status with from <= date < to.
func (db *DB) BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date >= ? AND date < ?
		ORDER BY date, start_time, id`,
		from.Format(time.DateOnly), to.Format(time.DateOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings between: %w", err)
	}
	return db.scanBookings(rows)
}

// BookingsBySeries returns every booking created for a recurring series.
func (db *DB) BookingsBySeries(ctx context.Context, seriesID string) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE series_id = ?
		ORDER BY date, start_time`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	return db.scanBookings(rows)
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateStatus changes the status of a booking. Status is the only mutable field.
func (db *DB) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: booking %d cannot be restored, its slot is taken", availability.ErrSlotConflict, id)
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		addOns string
		date   string
		clock  string
	)
	err := row.Scan(&b.ID, &b.SeriesID, &b.CustomerID, &b.AddressID, &b.ServiceName, &addOns,
		&date, &clock, &b.DurationMinutes, &b.Status, &b.Comment, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Start, err = time.ParseInLocation(time.DateOnly+" 15:04", date+" "+clock, db.loc)
	if err != nil {
		return nil, fmt.Errorf("booking %d start: %w", b.ID, err)
	}
	if b.AddOns, err = decodeAddOns(addOns); err != nil {
		return nil, fmt.Errorf("booking %d add-ons: %w", b.ID, err)
	}
	return &b, nil
}

func (db *DB) scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()

	result := make([]model.Booking, 0)
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func encodeAddOns(addOns []string) (string, error) {
	if len(addOns) == 0 {
		return "", nil
	}
	data, err := json.Marshal(addOns)
	if err != nil {
		return "", fmt.Errorf("encode add-ons: %w", err)
	}
	return string(data), nil
}

func decodeAddOns(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
