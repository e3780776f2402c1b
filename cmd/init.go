package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cellwatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cellwatch configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the recipient, scanning profile, telemetry source and a notification relay, and writes a .cellwatch.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
