package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <media-type>",
	Short: "List installed titles for a media type (get_num_programs / get_program_list)",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		media, err := parseMediaType(args[0])
		if err != nil {
			return err
		}
		cat, err := openCatalogue()
		if err != nil {
			return err
		}

		titles := cat.ProgramList(media)
		fmt.Fprintf(cmd.OutOrStdout(), "%d title(s) on %s\n", len(titles), media)
		for _, titleID := range titles {
			tickets := cat.Tickets(titleID)
			fmt.Fprintf(cmd.OutOrStdout(), "  %016x  tickets=%v\n", titleID, ticketHex(tickets))
		}
		return nil
	},
}

func ticketHex(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%016x", id)
	}
	return out
}

func init() {
	rootCmd.AddCommand(listCmd)
}
