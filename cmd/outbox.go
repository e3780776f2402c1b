package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/progress"
	"github.com/ziadkadry99/cellwatch/internal/report"
)

var (
	outboxKind    string
	outboxPending bool
	outboxSince   time.Duration
	outboxLimit   int
	outboxJSON    bool
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and resend dispatched reports",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dispatched reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if !a.persistentOutbox() {
			fmt.Fprintln(cmd.ErrOrStderr(), "note: no data_dir configured; the outbox only holds reports from this process")
		}

		filter := notifications.ListFilter{
			Kind:  report.Kind(outboxKind),
			Limit: outboxLimit,
		}
		if outboxPending {
			undelivered := false
			filter.Delivered = &undelivered
		}
		if outboxSince > 0 {
			filter.Since = time.Now().Add(-outboxSince)
		}

		records, err := a.outbox.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("listing outbox: %w", err)
		}
		if outboxJSON {
			return writeIndentedJSON(cmd, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "The outbox is empty.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tCREATED\tSTATE\tSUBJECT")
		for _, r := range records {
			state := "pending"
			if r.Delivered {
				state = r.Channel
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), state, r.Subject)
		}
		return tw.Flush()
	},
}

var outboxShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one report with its delivery attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if !a.persistentOutbox() {
			fmt.Fprintln(cmd.ErrOrStderr(), "note: no data_dir configured; the outbox only holds reports from this process")
		}

		rec, err := a.outbox.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outboxJSON {
			return writeIndentedJSON(cmd, rec)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:         %s\n", rec.ID)
		fmt.Fprintf(out, "Kind:       %s (%s)\n", rec.Kind, rec.EventType)
		fmt.Fprintf(out, "Recipient:  %s\n", rec.Recipient)
		fmt.Fprintf(out, "Created:    %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
		if rec.Delivered {
			fmt.Fprintf(out, "Delivered:  yes, via %s\n", rec.Channel)
		} else {
			fmt.Fprintln(out, "Delivered:  no")
		}
		fmt.Fprintln(out, "Attempts:")
		printResult(out, notifications.Result{Attempts: rec.Attempts})
		fmt.Fprintf(out, "\nSubject: %s\n\n%s\n", rec.Subject, rec.Body)
		return nil
	},
}

var outboxResendCmd = &cobra.Command{
	Use:   "resend [id...]",
	Short: "Resend reports through the configured relays",
	Long: `Retries delivery of the given outbox records, or of every undelivered record
with --pending. New attempts are appended to each record's history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !outboxPending {
			return errors.New("give at least one report id or --pending")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if !a.persistentOutbox() {
			fmt.Fprintln(cmd.ErrOrStderr(), "note: no data_dir configured; the outbox only holds reports from this process")
		}

		ctx := cmd.Context()
		ids := args
		if outboxPending {
			pending, err := a.outbox.GetPending(ctx)
			if err != nil {
				return fmt.Errorf("listing pending reports: %w", err)
			}
			for _, r := range pending {
				ids = append(ids, r.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resend.")
			return nil
		}

		reporter := progress.NewReporter("Resending reports")
		reporter.Start(len(ids))
		var failed int
		for i, id := range ids {
			res, err := a.dispatcher.Resend(ctx, id)
			msg := fmt.Sprintf("%s: delivered via %s", id, res.Channel)
			if err != nil {
				failed++
				msg = fmt.Sprintf("%s: %v", id, err)
			}
			reporter.Update(i+1, msg)
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Resent %d of %d report(s)\n", len(ids)-failed, len(ids))
		if failed > 0 {
			return fmt.Errorf("%d report(s) still undelivered", failed)
		}
		return nil
	},
}

func writeIndentedJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	outboxListCmd.Flags().StringVar(&outboxKind, "kind", "", "only reports of this kind (alert, heartbeat, manual)")
	outboxListCmd.Flags().BoolVar(&outboxPending, "pending", false, "only undelivered reports")
	outboxListCmd.Flags().DurationVar(&outboxSince, "since", 0, "only reports created within this duration, e.g. 24h")
	outboxListCmd.Flags().IntVar(&outboxLimit, "limit", 50, "maximum number of reports")
	outboxListCmd.Flags().BoolVar(&outboxJSON, "json", false, "print JSON")
	outboxShowCmd.Flags().BoolVar(&outboxJSON, "json", false, "print JSON")
	outboxResendCmd.Flags().BoolVar(&outboxPending, "pending", false, "resend every undelivered report")

	outboxCmd.AddCommand(outboxListCmd, outboxShowCmd, outboxResendCmd)
	rootCmd.AddCommand(outboxCmd)
}
