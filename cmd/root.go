package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cellwatch/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cellwatch",
	Short: "Watch the serving cell tower and report changes",
	Long: `cellwatch periodically reads the cell tower the device is registered on,
emails an alert when the tower changes and a heartbeat every few unchanged
scans, and keeps every report in a local outbox. A local HTTP API and an MCP
server expose the current status and manual scan and report actions.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
