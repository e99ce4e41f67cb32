package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/registry"
	"github.com/azahar-emu/titlecore/internal/ticket"
	"github.com/azahar-emu/titlecore/internal/unique"
)

var importTicketCmd = &cobra.Command{
	Use:   "import-ticket <path>",
	Short: "Import a standalone ticket (begin_import_ticket / end_import_ticket)",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		tk, err := ticket.Load(raw)
		if err != nil {
			return err
		}
		if err := tk.DoTitlekeyFixup((*unique.ConsoleState)(nil), crypto.ECCPrivateKey{}); err != nil {
			return err
		}

		cat, err := openCatalogue()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(registry.TicketDir(nandRoot), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(registry.TicketPath(nandRoot, tk.TitleID, tk.TicketID), tk.Serialize(), 0o644); err != nil {
			return err
		}
		cat.AddTicket(tk.TitleID, tk.TicketID)

		fmt.Fprintf(cmd.OutOrStdout(), "imported ticket %016x for title %016x\n", tk.TicketID, tk.TitleID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importTicketCmd)
}
