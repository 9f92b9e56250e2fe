package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockchat/internal/service/client"
	"lockchat/internal/tui"
	"lockchat/internal/utils/memzero"
)

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <host:port>",
		Short: "Connect to a chat server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]

			dek, err := loadDEK()
			if err != nil {
				return err
			}
			defer memzero.Zero(dek)

			c, err := client.Dial(addr, dek, cfg.Username, client.Options{
				MaxFrameSize:     cfg.MaxFrameSize,
				HandshakeTimeout: cfg.HandshakeTimeout,
			})
			if err != nil {
				return fmt.Errorf("connect %s: %w", addr, err)
			}
			defer c.Close()

			ui := tui.New(fmt.Sprintf("lockchat %s", addr), c.Send)
			return ui.Run(c.Events())
		},
	}
}
