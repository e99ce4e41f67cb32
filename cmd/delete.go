package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <title-id>",
	Short: "Delete an installed title (delete_user_program)",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		titleID, err := strconv.ParseUint(args[0], 16, 64)
		if err != nil {
			return fmt.Errorf("bad title-id %q: %w", args[0], err)
		}
		media, err := parseMediaType(viper.GetString("media"))
		if err != nil {
			return err
		}
		cat, err := openCatalogue()
		if err != nil {
			return err
		}
		if !cat.HasProgram(media, titleID) {
			return fmt.Errorf("title %016x not installed on %s", titleID, media)
		}
		if err := cat.DeleteTitle(media, titleID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "deleted title %016x from %s\n", titleID, media)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().String("media", "nand", "Media type the title is installed on")
}
