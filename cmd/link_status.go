package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkStatusCmd = &cobra.Command{
	Use:   "link-status",
	Short: "Report whether this console has full console-link data loaded",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openKeyStore()
		if err != nil {
			return err
		}
		state, err := openConsoleState(store)
		if err != nil {
			return err
		}
		if state.IsFullConsoleLinked() {
			fmt.Fprintln(cmd.OutOrStdout(), "linked")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "not linked")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkStatusCmd)
}
