package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/config"
	"ezbiz/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func at(day, hour, min int) time.Time {
	return time.Date(2025, 1, day, hour, min, 0, 0, time.UTC)
}

func TestPersistAndFetchBookings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first := &model.Booking{
		CustomerID:      42,
		AddressID:       7,
		ServiceName:     "Lawn Mowing",
		AddOns:          []string{"Edging", "Leaf Blowing"},
		Start:           at(6, 10, 0),
		DurationMinutes: 90,
		Comment:         "gate code 1234",
	}
	require.NoError(t, db.PersistBooking(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.False(t, first.CreatedAt.IsZero())

	second := &model.Booking{ServiceName: "Window Cleaning", Start: at(6, 8, 0)}
	require.NoError(t, db.PersistBooking(ctx, second))
	assert.Equal(t, model.DefaultDurationMinutes, second.DurationMinutes)

	other := &model.Booking{ServiceName: "Window Cleaning", Start: at(7, 8, 0)}
	require.NoError(t, db.PersistBooking(ctx, other))

	got, err := db.BookingsForDate(ctx, at(6, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, at(6, 10, 0), got[1].Start)
	assert.Equal(t, 90, got[1].DurationMinutes)
	assert.Equal(t, []string{"Edging", "Leaf Blowing"}, got[1].AddOns)
	assert.Equal(t, "gate code 1234", got[1].Comment)
	assert.Equal(t, int64(42), got[1].CustomerID)
	assert.Nil(t, got[0].AddOns)
}

func TestPersistBooking_UniqueSlot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.PersistBooking(ctx, &model.Booking{ServiceName: "A", Start: at(6, 10, 0)}))

	err := db.PersistBooking(ctx, &model.Booking{ServiceName: "B", Start: at(6, 10, 0)})
	assert.ErrorIs(t, err, availability.ErrSlotConflict)
	assert.Contains(t, err.Error(), "2025-01-06 10:00")
}

func TestPersistBooking_CanceledFreesSlot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	b := &model.Booking{ServiceName: "A", Start: at(6, 10, 0)}
	require.NoError(t, db.PersistBooking(ctx, b))
	require.NoError(t, db.UpdateStatus(ctx, b.ID, model.StatusCanceled))

	got, err := db.BookingsForDate(ctx, at(6, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, got)

	replacement := &model.Booking{ServiceName: "B", Start: at(6, 10, 0)}
	require.NoError(t, db.PersistBooking(ctx, replacement))

	err = db.UpdateStatus(ctx, b.ID, model.StatusPending)
	assert.ErrorIs(t, err, availability.ErrSlotConflict)
}

func TestPersistBooking_ConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.PersistBooking(ctx, &model.Booking{ServiceName: "A", Start: at(6, 10, 0)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, availability.ErrSlotConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

func TestGetBookingAndSeries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, day := range []int{6, 13, 20} {
		require.NoError(t, db.PersistBooking(ctx, &model.Booking{SeriesID: "series-1", ServiceName: "A", Start: at(day, 9, 0)}))
	}
	single := &model.Booking{ServiceName: "B", Start: at(6, 14, 0)}
	require.NoError(t, db.PersistBooking(ctx, single))

	series, err := db.BookingsBySeries(ctx, "series-1")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, at(20, 9, 0), series[2].Start)

	got, err := db.GetBooking(ctx, single.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.SeriesID)

	_, err = db.GetBooking(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateStatus(ctx, 9999, model.StatusCanceled), ErrNotFound)
}

func TestBookingsBetween(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, day := range []int{5, 6, 7, 8} {
		require.NoError(t, db.PersistBooking(ctx, &model.Booking{ServiceName: "A", Start: at(day, 9, 0)}))
	}

	got, err := db.BookingsBetween(ctx, at(6, 0, 0), at(8, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 6, got[0].Start.Day())
	assert.Equal(t, 7, got[1].Start.Day())
}

func TestServiceCatalog(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	inactive := false

	require.NoError(t, db.SyncServicesFromConfig(ctx, []config.ServiceConfig{
		{Name: "Lawn Mowing", DurationMinutes: 60},
		{Name: "Edging", DurationMinutes: 30, AddOn: true},
		{Name: "Snow Removal", DurationMinutes: 90, IsActive: &inactive},
	}))

	durations, err := db.ServiceDurations(ctx, []string{"Lawn Mowing", "Edging", "Snow Removal", "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Lawn Mowing": 60, "Edging": 30}, durations)

	empty, err := db.ServiceDurations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, db.SyncServicesFromConfig(ctx, []config.ServiceConfig{
		{Name: "Lawn Mowing", DurationMinutes: 75},
	}))

	active, err := db.ListServices(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Lawn Mowing", active[0].Name)
	assert.Equal(t, 75, active[0].DurationMinutes)

	all, err := db.ListServices(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBackupService(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.PersistBooking(ctx, &model.Booking{ServiceName: "A", Start: at(6, 9, 0)}))

	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, RetentionDays: 7}, zerolog.New(io.Discard))

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	require.FileExists(t, path)

	restored, err := NewDB(path, time.UTC, zerolog.New(io.Discard))
	require.NoError(t, err)
	defer restored.Close()
	got, err := restored.BookingsForDate(ctx, at(6, 0, 0))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	old := filepath.Join(dir, backupPrefix+"old.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o600))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, old)
	assert.FileExists(t, unrelated)
	assert.FileExists(t, path)
}

func TestBackupService_Disabled(t *testing.T) {
	svc := NewBackupService(newTestDB(t), config.BackupConfig{}, zerolog.New(io.Discard))
	done := make(chan struct{})
	go func() {
		svc.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled backup service should return immediately")
	}
}
