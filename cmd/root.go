package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/azahar-emu/titlecore/internal/keystore"
	"github.com/azahar-emu/titlecore/internal/registry"
	"github.com/azahar-emu/titlecore/internal/unique"
)

var (
	nandRoot       string
	sdmcRoot       string
	registryDBType string
	registryDBDSN  string
	presetKeysPath string
	otpPath        string
	debug          bool
	logLevel       slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "titlecore",
	Short: "Install and manage 3DS-format titles against a NAND/SDMC layout",
	Long: `titlecore parses and installs CIA archives, tickets, and NCCH content
against a title registry laid out the way a real console's NAND and SDMC
media are, including update-slot resolution, per-console content wrapping,
and seekable compression.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
	rootCmd.PersistentFlags().String("nand", "", "NAND media root")
	rootCmd.PersistentFlags().String("sdmc", "", "SDMC media root")
	rootCmd.PersistentFlags().String("registry-db-type", "sqlite", "Registry durability side-index driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("registry-db", "", "Registry durability side-index DSN (sqlite file path, or a postgres connection string)")
	rootCmd.PersistentFlags().String("preset-keys", "", "Path to the AES/RSA/ECC preset-key blob")
	rootCmd.PersistentFlags().String("otp", "", "Path to this console's OTP blob (needed by sign, link-status, unlink)")
}

// rootCmdLoadConfig binds cmd's flags (local and inherited persistent) into
// viper, matching the teacher's BindPFlags-in-PreRunE pattern, then loads
// the shared globals every subcommand needs. Called by each subcommand's
// PreRunE before it runs.
func rootCmdLoadConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if !viper.IsSet("nand") {
		return errors.New("missing required NAND media root (--nand)")
	}
	nandRoot = viper.GetString("nand")
	sdmcRoot = viper.GetString("sdmc")
	registryDBType = viper.GetString("registry-db-type")
	registryDBDSN = viper.GetString("registry-db")
	presetKeysPath = viper.GetString("preset-keys")
	otpPath = viper.GetString("otp")

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	return nil
}

// openCatalogue constructs the registry catalogue for the configured media
// roots, scans it, and attaches the durability side-index if one was
// configured.
func openCatalogue() (*registry.Catalogue, error) {
	cat := registry.NewCatalogue(registry.Roots{NAND: nandRoot, SDMC: sdmcRoot})
	if err := cat.ScanAll(); err != nil {
		return nil, err
	}
	if registryDBDSN != "" {
		db, err := registry.OpenRegistryDB(registryDBType, registryDBDSN)
		if err != nil {
			return nil, err
		}
		if err := cat.SetDB(db); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// openKeyStore loads the process-wide key store from the configured preset
// blob, or the embedded fallback if none was given.
func openKeyStore() (*keystore.Store, error) {
	if presetKeysPath == "" {
		return keystore.Default(nil), nil
	}
	f, err := os.Open(presetKeysPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return keystore.Default(f), nil
}

// openConsoleState loads this console's OTP blob (if --otp was given) and
// builds the in-memory ConsoleState commands like sign, link-status, and
// unlink operate on. Returns an empty, unlinked state if no OTP path was
// configured.
func openConsoleState(store *keystore.Store) (*unique.ConsoleState, error) {
	if otpPath == "" {
		return &unique.ConsoleState{}, nil
	}
	raw, err := os.ReadFile(otpPath)
	if err != nil {
		return nil, err
	}
	otpKey, _ := store.Slot("otpKey").Normal()
	otpIV, _ := store.Slot("otpIV").Normal()
	otp, err := unique.LoadOTP(raw, otpKey[:], otpIV[:])
	if err != nil {
		return nil, err
	}
	return &unique.ConsoleState{OTP: otp}, nil
}
