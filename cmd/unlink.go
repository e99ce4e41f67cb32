package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Clear this console's in-memory link data (unlink_console)",
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
		state.Unlink()
		fmt.Fprintln(cmd.OutOrStdout(), "console link data cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlinkCmd)
}
