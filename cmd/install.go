package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azahar-emu/titlecore/internal/cia"
	"github.com/azahar-emu/titlecore/internal/registry"
	"github.com/azahar-emu/titlecore/internal/ticket"
)

var (
	installMedia    string
	installCompress bool
)

var installCmd = &cobra.Command{
	Use:   "install <path-or->",
	Short: "Install a CIA archive (begin_import_title / feed / end_import_title)",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		installMedia = viper.GetString("media")
		installCompress = viper.GetBool("compress")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readAllOrStdin(args[0])
		if err != nil {
			return err
		}

		media, err := parseMediaType(installMedia)
		if err != nil {
			return err
		}

		cat, err := openCatalogue()
		if err != nil {
			return err
		}
		store, err := openKeyStore()
		if err != nil {
			return err
		}
		cfg, err := loadTitlecoreConfig()
		if err != nil {
			return err
		}
		seeds, err := cfg.seedLookup()
		if err != nil {
			return err
		}

		// Peeking the ticket up front resolves the title-id the way
		// begin_import_title(T) requires a caller-supplied T; the archive's
		// own header gives us the ticket's offset/size without needing the
		// TMD yet.
		header, err := cia.ParseHeader(data[:cia.HeaderSize])
		if err != nil {
			return err
		}
		ticketOffset, ticketSize := header.TicketBounds()
		tk, err := ticket.Load(data[ticketOffset : ticketOffset+ticketSize])
		if err != nil {
			return err
		}

		if err := cat.LockCIAInstall(); err != nil {
			return err
		}
		defer cat.UnlockCIAInstall()

		cat.BeginImportTitle(tk.TitleID)
		deps := cat.NewCIADependencies(tk.TitleID, registry.InstallerOptions{
			Media:                media,
			Store:                store,
			DecryptionAuthorized: true,
			Seeds:                seeds,
			Compress:             installCompress,
		})
		im := cia.NewImporter(deps)
		if err := im.Write(0, data); err != nil {
			cat.CancelImportTitle(tk.TitleID)
			return err
		}
		if err := im.Close(); err != nil {
			return err
		}
		if err := cat.EndImportTitle(tk.TitleID); err != nil {
			return err
		}
		if err := cat.CommitImportTitles([]uint64{tk.TitleID}, true); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "installed title %016x in state %s\n", tk.TitleID, im.State())
		return nil
	},
}

func readAllOrStdin(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func parseMediaType(s string) (registry.MediaType, error) {
	switch s {
	case "", "nand":
		return registry.MediaNAND, nil
	case "sdmc":
		return registry.MediaSDMC, nil
	case "gamecard":
		return registry.MediaGameCard, nil
	default:
		return 0, fmt.Errorf("unknown media type %q (want nand, sdmc, or gamecard)", s)
	}
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().String("media", "nand", "Target media type (nand, sdmc, gamecard)")
	installCmd.Flags().Bool("compress", false, "Store installed content behind seekable zstd compression")
}
