package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cellwatch/internal/cell"
	"github.com/ziadkadry99/cellwatch/internal/notifications"
)

var (
	scanSend bool
	scanJSON bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read the serving cell tower once",
	Long: `Performs a single manual scan and prints the result. With --send a manual
report of the scanned tower is emailed through the configured relays.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		snap, err := a.scanner.ScanNow(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.scanner.Hub().Snapshot().StatusMessage, err)
		}

		out := cmd.OutOrStdout()
		if scanJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			printSnapshot(out, snap)
		}

		if !scanSend {
			return nil
		}
		res, err := a.scanner.SendReport(ctx)
		printResult(os.Stderr, res)
		if err != nil {
			return fmt.Errorf("sending report: %w", err)
		}
		fmt.Fprintln(os.Stderr, a.scanner.Hub().Snapshot().Email.Message)
		return nil
	},
}

func printSnapshot(w io.Writer, s cell.Snapshot) {
	fmt.Fprintf(w, "Carrier:      %s (%s)\n", s.CarrierName, s.CountryCode)
	fmt.Fprintf(w, "MCC/MNC:      %s/%s\n", s.MCC, s.MNC)
	fmt.Fprintf(w, "LAC:          %s\n", s.LAC)
	fmt.Fprintf(w, "Cell ID:      %s\n", s.CID)
	fmt.Fprintf(w, "Signal:       %s\n", s.SignalDisplay())
	fmt.Fprintf(w, "RSSI:         %d dBm\n", s.RSSI)
	fmt.Fprintf(w, "Network:      %s\n", s.NetworkType)
	fmt.Fprintf(w, "Captured at:  %s\n", s.CapturedAt.Format("2006-01-02 15:04:05 MST"))
}

func printResult(w io.Writer, res notifications.Result) {
	for _, a := range res.Attempts {
		switch {
		case a.Skipped:
			fmt.Fprintf(w, "  %-12s skipped (not configured)\n", a.Channel)
		case a.Error != "":
			fmt.Fprintf(w, "  %-12s %s\n", a.Channel, a.Error)
		default:
			fmt.Fprintf(w, "  %-12s delivered\n", a.Channel)
		}
	}
}

func init() {
	scanCmd.Flags().BoolVar(&scanSend, "send", false, "email a manual report of the scanned tower")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(scanCmd)
}
