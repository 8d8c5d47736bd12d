package cli

import (
	"fmt"

	"ezbiz/internal/availability"

	"github.com/spf13/cobra"
)

var (
	checkServices []string
	checkDuration int
)

var checkCmd = &cobra.Command{
	Use:   "check <date> <HH:MM>",
	Short: "Validate a requested start time",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringSliceVarP(&checkServices, "service", "s", nil, "service name, repeatable")
	checkCmd.Flags().IntVarP(&checkDuration, "duration", "d", 0, "duration in minutes, overrides --service")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	start, err := parseStart(args[0], args[1])
	if err != nil {
		return err
	}
	duration, err := resolveDuration(cmd.Context(), checkServices, checkDuration)
	if err != nil {
		return err
	}

	res, err := engine.CheckAt(cmd.Context(), start, duration)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	if res.OK {
		cmd.Printf("available: %s for %d minutes\n", start.Format("2006-01-02 15:04"), duration)
		return nil
	}
	cmd.Printf("not available (%s): %s\n", availability.ReasonCode(res.Err), res.Reason)
	return nil
}
