package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/azahar-emu/titlecore/internal/certs"
	"github.com/azahar-emu/titlecore/internal/unique"
)

var signCmd = &cobra.Command{
	Use:   "sign <title-id> <path>",
	Short: "Sign data with an ephemeral per-title sub-certificate (sign)",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		titleID, err := strconv.ParseUint(args[0], 16, 64)
		if err != nil {
			return fmt.Errorf("bad title-id %q: %w", args[0], err)
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		store, err := openKeyStore()
		if err != nil {
			return err
		}
		state, err := openConsoleState(store)
		if err != nil {
			return err
		}
		if state.OTP == nil || !state.OTP.Valid() {
			return fmt.Errorf("sign requires a valid console OTP (--otp)")
		}

		ctCert, err := unique.BuildCTCert(state.OTP, store.ECCRootPublicKey())
		if err != nil {
			return err
		}

		var issuer, name [64]byte
		copy(issuer[:], fmt.Sprintf("%s-%s", trimNull(ctCert.Body.Issuer), trimNull(ctCert.Body.Name)))
		copy(name[:], fmt.Sprintf("AP%016x", titleID))

		subCert, err := certs.BuildECC(ctCert, issuer, name, ctCert.Body.Expiration)
		if err != nil {
			return err
		}
		sig, err := subCert.Sign(data)
		if err != nil {
			return err
		}

		sigPath := args[1] + ".sig"
		certPath := args[1] + ".cert"
		if err := os.WriteFile(sigPath, sig.RS[:], 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(certPath, subCert.Serialize(), 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", sigPath, certPath)
		return nil
	},
}

func trimNull(b [64]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}

func init() {
	rootCmd.AddCommand(signCmd)
}
