package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	slotsServices []string
	slotsDuration int
	slotsJSON     bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots <date>",
	Short: "List open start times for a date",
	Long: `Lists every start time on the date, stepping 30 minutes from opening,
at which the requested duration fits before closing without overlapping a
booking. The duration is the sum of the selected services unless --duration
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlots,
}

func init() {
	slotsCmd.Flags().StringSliceVarP(&slotsServices, "service", "s", nil, "service name, repeatable")
	slotsCmd.Flags().IntVarP(&slotsDuration, "duration", "d", 0, "duration in minutes, overrides --service")
	slotsCmd.Flags().BoolVar(&slotsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(slotsCmd)
}

func runSlots(cmd *cobra.Command, args []string) error {
	date, err := parseDate(args[0])
	if err != nil {
		return err
	}
	duration, err := resolveDuration(cmd.Context(), slotsServices, slotsDuration)
	if err != nil {
		return err
	}

	slots, err := engine.GetAvailableSlots(cmd.Context(), date, duration)
	if err != nil {
		return fmt.Errorf("slots for %s: %w", args[0], err)
	}

	clocks := make([]string, 0, len(slots))
	for _, s := range slots {
		clocks = append(clocks, s.Format("15:04"))
	}

	if slotsJSON {
		data, err := json.MarshalIndent(map[string]any{
			"date":             date.Format(time.DateOnly),
			"duration_minutes": duration,
			"slots":            clocks,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal slots: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(clocks) == 0 {
		cmd.Printf("No availability on %s for %d minutes.\n", date.Format(time.DateOnly), duration)
		return nil
	}
	cmd.Printf("%s, %d minutes, %d slots:\n", date.Format("Mon 2006-01-02"), duration, len(clocks))
	cmd.Printf("  %s\n", strings.Join(clocks, " "))
	return nil
}
