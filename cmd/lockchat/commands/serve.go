package commands

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lockchat/internal/admin"
	"lockchat/internal/history"
	"lockchat/internal/service/server"
	"lockchat/internal/tui"
	"lockchat/internal/utils/log"
	"lockchat/internal/utils/memzero"
)

func serveCmd() *cobra.Command {
	var (
		listenAddr string
		adminAddr  string
		redisAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server with its operator console",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if adminAddr != "" {
				cfg.AdminAddr = adminAddr
			}
			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}

			dek, err := loadDEK()
			if err != nil {
				return err
			}
			defer memzero.Zero(dek)

			var store history.Store
			if cfg.HistorySize > 0 {
				if cfg.RedisAddr != "" {
					rs := history.NewRedisStore(cfg.RedisAddr, "lockchat:history", cfg.HistorySize)
					defer rs.Close()
					store = rs
				} else {
					store = history.NewRing(cfg.HistorySize)
				}
			}

			srv := server.New(dek, server.Options{
				OperatorName:     cfg.Username,
				MaxFrameSize:     cfg.MaxFrameSize,
				HandshakeTimeout: cfg.HandshakeTimeout,
				History:          store,
			})

			// bind before the UI takes the terminal so a bad address fails
			// loudly
			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", cfg.ListenAddr, err)
			}
			go func() {
				if err := srv.Serve(ln); err != nil {
					log.Error("server stopped", zap.Error(err))
				}
			}()

			if cfg.AdminAddr != "" {
				adm := admin.New(srv)
				go func() {
					if err := adm.ListenAndServe(cfg.AdminAddr); err != nil {
						log.Error("admin endpoint failed", zap.Error(err))
					}
				}()
				defer adm.Shutdown(context.Background())
			}

			events, cancel := srv.Subscribe()
			defer cancel()

			ui := tui.New(fmt.Sprintf("lockchat server %s", ln.Addr()), srv.Broadcast)
			runErr := ui.Run(events)
			srv.Close()
			return runErr
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "chat listen address (default :7654)")
	cmd.Flags().StringVar(&adminAddr, "admin", "", "admin HTTP address (disabled when empty)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for durable message history")
	return cmd
}
