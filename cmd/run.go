package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cellwatch/internal/server"
)

var runAllowAllOrigins bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scan loop and the local status API",
	Long: `Starts scanning on the configured profile: alerts are sent when the serving
tower changes and heartbeats every few unchanged scans. Unless disabled in the
config, the status API and the /ws/status event stream are served as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var srv *server.Server
		errc := make(chan error, 1)
		if a.cfg.Server.Enabled {
			srv = server.New(server.Config{
				Addr:     a.cfg.Server.Addr,
				AllowAll: runAllowAllOrigins,
			}, a.scanner, a.dispatcher, a.logger)
			go func() { errc <- srv.Start() }()
		}

		if err := a.scanner.Start(ctx); err != nil {
			return fmt.Errorf("starting scanner: %w", err)
		}

		p := a.scanner.Profile()
		fmt.Fprintf(os.Stderr, "cellwatch %s running\n", Version)
		fmt.Fprintf(os.Stderr, "  Profile: %s\n", p.Label)
		fmt.Fprintf(os.Stderr, "  Telemetry: %s\n", a.reader.Platform())
		fmt.Fprintf(os.Stderr, "  Outbox: %s\n", a.outboxLabel())
		if srv != nil {
			fmt.Fprintf(os.Stderr, "  Status API: http://%s/api/status\n", a.cfg.Server.Addr)
		}

		var runErr error
		select {
		case <-ctx.Done():
		case err := <-errc:
			if err != nil {
				runErr = fmt.Errorf("status server: %w", err)
			}
		}

		fmt.Fprintln(os.Stderr, "\nShutting down...")
		a.scanner.Stop()
		a.scanner.Hub().Close()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("server shutdown", "error", err)
			}
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAllowAllOrigins, "cors-allow-all", false, "allow all CORS origins on the status API")
	rootCmd.AddCommand(runCmd)
}
