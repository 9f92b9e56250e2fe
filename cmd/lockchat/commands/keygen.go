package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lockchat/internal/keyvault"
	"lockchat/internal/utils/memzero"
)

func keygenCmd() *cobra.Command {
	var fromPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the encrypted key blob shared by all participants",
		Long: `Generates a fresh random 32-byte data-encryption key (or wraps an existing
raw key file) and stores it encrypted under a passphrase. Copy the resulting
blob to every participant; they unlock it with the same passphrase.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				dek []byte
				err error
			)
			if fromPath != "" {
				dek, err = os.ReadFile(fromPath)
				if err != nil {
					return fmt.Errorf("read raw key: %w", err)
				}
			} else {
				dek, err = keyvault.GenerateDEK()
				if err != nil {
					return err
				}
			}
			defer memzero.Zero(dek)

			pass, err := promptPassphrase(true)
			if err != nil {
				return err
			}

			if err := keyvault.WriteBlobFile(cfg.KeyPath, dek, pass); err != nil {
				return err
			}
			fmt.Printf("Wrote encrypted key to %s\n", cfg.KeyPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromPath, "from", "", "wrap an existing raw 32-byte key file instead of generating one")
	return cmd
}
