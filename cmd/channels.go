package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List notification relays in the order they are tried",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tREADY\tENDPOINT")
		for i, ch := range buildChannels(cfg.Channels) {
			ready := "no"
			if ch.Ready() {
				ready = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, ch.Name(), ready, cfg.Channels[i].Endpoint)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, ch := range cfg.Channels {
			if ch.CredentialEnv != "" && os.Getenv(ch.CredentialEnv) == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %s reads its credential from $%s, which is not set\n", ch.Name, ch.CredentialEnv)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(channelsCmd)
}
