package cmd

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/registry"
)

var exportTicketCmd = &cobra.Command{
	Use:   "export-ticket <title-id> <ticket-id>",
	Short: "Export a ticket re-wrapped for transfer (export_ticket_wrapped)",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		titleID, err := strconv.ParseUint(args[0], 16, 64)
		if err != nil {
			return fmt.Errorf("bad title-id %q: %w", args[0], err)
		}
		ticketID, err := strconv.ParseUint(args[1], 16, 64)
		if err != nil {
			return fmt.Errorf("bad ticket-id %q: %w", args[1], err)
		}

		raw, err := os.ReadFile(registry.TicketPath(nandRoot, titleID, ticketID))
		if err != nil {
			return err
		}

		store, err := openKeyStore()
		if err != nil {
			return err
		}
		wrapKey, ok := store.RSASlot("ticketWrap")
		if !ok {
			return fmt.Errorf("ticketWrap RSA key not loaded")
		}

		sessionKey := make([]byte, 16)
		sessionIV := make([]byte, 16)
		if _, err := rand.Read(sessionKey); err != nil {
			return err
		}
		if _, err := rand.Read(sessionIV); err != nil {
			return err
		}

		encTicket := crypto.AESCBCEncrypt(sessionKey, sessionIV, raw)
		wrappedKeyIV, err := crypto.RSAEncryptPKCS1v15(wrapKey, append(append([]byte(nil), sessionKey...), sessionIV...))
		if err != nil {
			return err
		}

		outPath := fmt.Sprintf("%016x.%016x.export", titleID, ticketID)
		if err := os.WriteFile(outPath, encTicket, 0o644); err != nil {
			return err
		}
		keyOutPath := outPath + ".key"
		if err := os.WriteFile(keyOutPath, wrappedKeyIV, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", outPath, keyOutPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportTicketCmd)
}
