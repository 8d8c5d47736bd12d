package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ezbiz/internal/config"
)

// Service is a row of the service duration catalog.
type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	AddOn           bool   `json:"add_on"`
	IsActive        bool   `json:"is_active"`
}

// ServiceDurations returns durations for the active services among names.
// Names missing from the catalog are absent from the result.
func (db *DB) ServiceDurations(ctx context.Context, names []string) (map[string]int, error) {
	result := make(map[string]int, len(names))
	if len(names) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name, duration_minutes FROM services WHERE is_active = 1 AND name IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query service durations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			minutes int
		)
		if err := rows.Scan(&name, &minutes); err != nil {
			return nil, err
		}
		result[name] = minutes
	}
	return result, rows.Err()
}

// ListServices returns the catalog ordered by name.
func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	q := `SELECT id, name, duration_minutes, is_add_on, is_active FROM services`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	result := make([]Service, 0)
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.AddOn, &s.IsActive); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// SyncServicesFromConfig applies the catalog from hours.yaml. It upserts
// listed services and marks services missing from the file inactive.
func (db *DB) SyncServicesFromConfig(ctx context.Context, services []config.ServiceConfig) error {
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(services))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (name, duration_minutes, is_add_on, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				duration_minutes = excluded.duration_minutes,
				is_add_on = excluded.is_add_on,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.Name, s.DurationMinutes, s.AddOn, s.Active(), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync service %q: %w", s.Name, err)
		}
		seen[s.Name] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT name FROM services WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[name]; !ok {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ? WHERE name = ?`, now, name); err != nil {
			return fmt.Errorf("deactivate service %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync: %w", err)
	}

	db.logger.Info().Int("services", len(services)).Int("deactivated", len(stale)).Msg("service catalog synced")
	return nil
}
