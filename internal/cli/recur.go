package cli

import (
	"fmt"
	"time"

	"ezbiz/internal/booking"
	"ezbiz/internal/recurrence"

	"github.com/spf13/cobra"
)

var (
	recurServices    []string
	recurDuration    int
	recurOccurrences int
	recurBook        bool
	recurCustomer    int64
	recurAddress     int64
	recurComment     string
)

var recurCmd = &cobra.Command{
	Use:   "recur <date> <HH:MM> <weekly|bi-weekly|monthly>",
	Short: "Preview or book a recurring series",
	Long: `Validates every date of a recurring series anchored at the given date and
time. Dates that fall outside business hours or conflict with a booking are
listed as skipped. With --book the anchor and all accepted dates are booked
under one series ID.`,
	Args: cobra.ExactArgs(3),
	RunE: runRecur,
}

func init() {
	recurCmd.Flags().StringSliceVarP(&recurServices, "service", "s", nil, "service name, repeatable; the first is the primary service")
	recurCmd.Flags().IntVarP(&recurDuration, "duration", "d", 0, "duration in minutes, overrides --service")
	recurCmd.Flags().IntVarP(&recurOccurrences, "occurrences", "n", 0, "cap on dates after the anchor (default: time horizon only)")
	recurCmd.Flags().BoolVar(&recurBook, "book", false, "commit the series")
	recurCmd.Flags().Int64Var(&recurCustomer, "customer", 0, "customer ID for --book")
	recurCmd.Flags().Int64Var(&recurAddress, "address", 0, "address ID for --book")
	recurCmd.Flags().StringVar(&recurComment, "comment", "", "comment stored on every booking")
	rootCmd.AddCommand(recurCmd)
}

func runRecur(cmd *cobra.Command, args []string) error {
	start, err := parseStart(args[0], args[1])
	if err != nil {
		return err
	}
	pattern, err := recurrence.ParsePattern(args[2])
	if err != nil {
		return err
	}
	horizon, err := bookingService.Horizon(start, recurOccurrences)
	if err != nil {
		return err
	}

	if recurBook {
		return bookSeries(cmd, start, pattern, horizon)
	}

	duration, err := resolveDuration(cmd.Context(), recurServices, recurDuration)
	if err != nil {
		return err
	}
	plan, err := engine.PlanRecurring(cmd.Context(), start, duration, pattern, horizon)
	if err != nil {
		return fmt.Errorf("plan series: %w", err)
	}

	cmd.Printf("%s series from %s, %d minutes:\n", pattern, start.Format("2006-01-02 15:04"), duration)
	for _, d := range plan.Accepted {
		cmd.Printf("  ok       %s\n", d.Format("Mon 2006-01-02"))
	}
	for _, s := range plan.Skipped {
		cmd.Printf("  skipped  %s  %s: %s\n", s.Start.Format("Mon 2006-01-02"), s.Code, s.Reason)
	}
	cmd.Printf("%d accepted, %d skipped\n", len(plan.Accepted), len(plan.Skipped))
	return nil
}

func bookSeries(cmd *cobra.Command, start time.Time, pattern recurrence.Pattern, horizon recurrence.Horizon) error {
	if len(recurServices) == 0 {
		return fmt.Errorf("--book needs at least one --service")
	}

	res, err := bookingService.BookRecurring(cmd.Context(), booking.Request{
		CustomerID:      recurCustomer,
		AddressID:       recurAddress,
		Service:         recurServices[0],
		AddOns:          recurServices[1:],
		Start:           start,
		DurationMinutes: recurDuration,
		Comment:         recurComment,
	}, pattern, horizon)
	if res != nil {
		cmd.Printf("series %s\n", res.SeriesID)
		for _, b := range res.Bookings {
			cmd.Printf("  booked   #%d %s\n", b.ID, b.Start.Format("Mon 2006-01-02 15:04"))
		}
		for _, s := range res.Skipped {
			cmd.Printf("  skipped  %s  %s\n", s.Start.Format("Mon 2006-01-02"), s.Code)
		}
	}
	if err != nil {
		return fmt.Errorf("book series: %w", err)
	}
	return nil
}
