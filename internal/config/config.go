// Package config assembles runtime settings from environment variables
// (LOCKCHAT_ prefix) with defaults suitable for a LAN deployment. Command
// flags override whatever the environment produced.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		// ListenAddr is the chat listener for serve.
		ListenAddr string `env:"LISTEN_ADDR" envDefault:":7654"`
		// AdminAddr enables the HTTP admin endpoint when non-empty.
		AdminAddr string `env:"ADMIN_ADDR"`
		// RedisAddr switches message history to redis when non-empty.
		RedisAddr string `env:"REDIS_ADDR"`
		// HistorySize is the number of sealed envelopes replayed to late
		// joiners; zero disables replay.
		HistorySize int `env:"HISTORY_SIZE" envDefault:"50"`
		// MaxFrameSize bounds any declared frame payload length.
		MaxFrameSize uint32 `env:"MAX_FRAME_SIZE" envDefault:"1048576"`
		// KeyPath locates the encrypted DEK blob.
		KeyPath string `env:"KEY_PATH"`
		// Username is the name asserted in outgoing envelopes.
		Username string `env:"USERNAME"`
		// HandshakeTimeout bounds a whole handshake.
		HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"5s"`
		// Debug switches logging to the development encoder.
		Debug bool `env:"DEBUG"`
	}
)

// Load parses the environment and fills in the derived defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "LOCKCHAT_"}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.KeyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.KeyPath = filepath.Join(home, ".lockchat", "dek.bin")
	}

	if cfg.Username == "" {
		if u, err := user.Current(); err == nil && u.Username != "" {
			cfg.Username = u.Username
		} else {
			cfg.Username = "anonymous"
		}
	}

	return cfg, nil
}
