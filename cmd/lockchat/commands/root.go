package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lockchat/internal/config"
	"lockchat/internal/keyvault"
	"lockchat/internal/utils/log"
)

var (
	cfg *config.Config

	keyPath    string
	passphrase string
	username   string
	debug      bool
)

func Execute() error {
	root := &cobra.Command{
		Use:           "lockchat",
		Short:         "Encrypted group chat for small trusted networks",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if keyPath != "" {
				cfg.KeyPath = keyPath
			}
			if username != "" {
				cfg.Username = username
			}
			if debug {
				cfg.Debug = true
			}
			log.Init(cfg.Debug)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&keyPath, "key", "", "encrypted key blob path (default ~/.lockchat/dek.bin)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase unlocking the key blob (prompted when empty)")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "username shown to other participants")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")

	root.AddCommand(keygenCmd(), serveCmd(), connectCmd())
	return root.Execute()
}

// promptPassphrase reads the passphrase without echo, unless it was supplied
// via the flag for scripting.
func promptPassphrase(confirm bool) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}

	fmt.Fprint(os.Stderr, "Enter passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("passphrase must not be empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if !bytes.Equal(first, second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

// loadDEK unlocks the key blob. Callers own the returned key and must zero
// it before exiting.
func loadDEK() ([]byte, error) {
	pass, err := promptPassphrase(false)
	if err != nil {
		return nil, err
	}
	dek, err := keyvault.LoadDEK(cfg.KeyPath, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock %s: %w", cfg.KeyPath, err)
	}
	return dek, nil
}
