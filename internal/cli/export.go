package cli

import (
	"fmt"

	"ezbiz/internal/report"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <from> <to>",
	Short: "Export the schedule to an xlsx workbook",
	Long: `Writes every booking from the first date through the last date, both
inclusive, to an xlsx workbook with a per-day summary sheet.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default schedule_<from>_<to>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	from, err := parseDate(args[0])
	if err != nil {
		return err
	}
	last, err := parseDate(args[1])
	if err != nil {
		return err
	}
	to := last.AddDate(0, 0, 1)

	path := exportOut
	if path == "" {
		path = report.GenerateFilename(from, to)
	}

	summary, err := exporter.ExportToFile(cmd.Context(), from, to, path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	cmd.Printf("wrote %s: %d bookings, %d booked minutes over %d days\n", path, summary.Bookings, summary.Minutes, len(summary.Days))
	return nil
}
