package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ezbiz/internal/model"

	"github.com/rs/zerolog"
)

// Source lists bookings with from <= date < to.
type Source interface {
	BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
}

var scheduleColumns = []string{
	"Date", "Start", "End", "Minutes", "Service", "Add-ons",
	"Customer", "Address", "Series", "Status", "Comment",
}

var scheduleWidths = []float64{12, 8, 8, 9, 22, 24, 10, 10, 38, 11, 40}

// DaySummary is the load of one day.
type DaySummary struct {
	Date     time.Time
	Bookings int
	Minutes  int
}

// Summary is returned by Export for logging and CLI output.
type Summary struct {
	From     time.Time
	To       time.Time
	Bookings int
	Minutes  int
	Days     []DaySummary
}

type Exporter struct {
	source Source
	logger zerolog.Logger
}

func NewExporter(source Source, logger zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Export writes the schedule for [from, to) as a workbook with a Schedule
// sheet listing every booking and a Summary sheet with per-day totals.
func (e *Exporter) Export(ctx context.Context, from, to time.Time, out io.Writer) (Summary, error) {
	wb, summary, err := e.build(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	defer wb.close()

	if err := wb.write(out); err != nil {
		return Summary{}, fmt.Errorf("write workbook: %w", err)
	}
	return summary, nil
}

// ExportToFile is Export writing to path.
func (e *Exporter) ExportToFile(ctx context.Context, from, to time.Time, path string) (Summary, error) {
	wb, summary, err := e.build(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	defer wb.close()

	if err := wb.saveAs(path); err != nil {
		return Summary{}, fmt.Errorf("save %s: %w", path, err)
	}
	e.logger.Info().
		Str("path", path).
		Int("bookings", summary.Bookings).
		Msg("schedule exported")
	return summary, nil
}

func (e *Exporter) build(ctx context.Context, from, to time.Time) (*workbook, Summary, error) {
	from, to = model.DateOf(from), model.DateOf(to)
	if !to.After(from) {
		return nil, Summary{}, fmt.Errorf("export range %s..%s is empty", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	bookings, err := e.source.BookingsBetween(ctx, from, to)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("load bookings: %w", err)
	}

	wb, err := newWorkbook()
	if err != nil {
		return nil, Summary{}, err
	}

	summary, err := writeSchedule(wb, from, to, bookings)
	if err != nil {
		_ = wb.close()
		return nil, Summary{}, err
	}
	return wb, summary, nil
}

func writeSchedule(wb *workbook, from, to time.Time, bookings []model.Booking) (Summary, error) {
	summary := Summary{From: from, To: to}

	if err := wb.addSheet("Schedule", scheduleColumns, scheduleWidths); err != nil {
		return summary, err
	}

	byDay := make(map[string]*DaySummary)
	for _, b := range bookings {
		minutes := b.EffectiveDuration()
		if err := wb.append([]any{
			b.Start.Format(time.DateOnly),
			b.Start.Format("15:04"),
			b.End().Format("15:04"),
			minutes,
			b.ServiceName,
			strings.Join(b.AddOns, ", "),
			b.CustomerID,
			b.AddressID,
			b.SeriesID,
			b.Status,
			b.Comment,
		}); err != nil {
			return summary, err
		}

		if !b.IsHolding() {
			continue
		}
		key := b.Start.Format(time.DateOnly)
		ds, ok := byDay[key]
		if !ok {
			ds = &DaySummary{Date: b.Date()}
			byDay[key] = ds
		}
		ds.Bookings++
		ds.Minutes += minutes
		summary.Bookings++
		summary.Minutes += minutes
	}

	if err := wb.addSheet("Summary", []string{"Date", "Bookings", "Booked minutes"}, []float64{12, 10, 15}); err != nil {
		return summary, err
	}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		ds := DaySummary{Date: d}
		if found, ok := byDay[d.Format(time.DateOnly)]; ok {
			ds = *found
		}
		summary.Days = append(summary.Days, ds)
		if err := wb.append([]any{d.Format(time.DateOnly), ds.Bookings, ds.Minutes}); err != nil {
			return summary, err
		}
	}
	if err := wb.append([]any{"Total", summary.Bookings, summary.Minutes}); err != nil {
		return summary, err
	}
	return summary, nil
}

// GenerateFilename names an export like "schedule_2025-01-06_2025-01-12.xlsx",
// using the last included day.
func GenerateFilename(from, to time.Time) string {
	last := model.DateOf(to).AddDate(0, 0, -1)
	return fmt.Sprintf("schedule_%s_%s.xlsx", model.DateOf(from).Format(time.DateOnly), last.Format(time.DateOnly))
}
