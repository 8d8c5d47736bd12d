package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <booking-id>",
	Short: "Cancel a booking and free its slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid booking id %q", args[0])
	}

	b, err := bookingService.Cancel(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	cmd.Printf("booking #%d on %s is %s\n", b.ID, b.Start.Format("2006-01-02 15:04"), b.Status)
	return nil
}
