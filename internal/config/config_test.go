package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":7654", cfg.ListenAddr)
	require.Equal(t, 50, cfg.HistorySize)
	require.Equal(t, uint32(1<<20), cfg.MaxFrameSize)
	require.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	require.NotEmpty(t, cfg.KeyPath)
	require.NotEmpty(t, cfg.Username)
	require.Empty(t, cfg.AdminAddr)
	require.Empty(t, cfg.RedisAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOCKCHAT_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("LOCKCHAT_ADMIN_ADDR", "127.0.0.1:9001")
	t.Setenv("LOCKCHAT_HISTORY_SIZE", "5")
	t.Setenv("LOCKCHAT_MAX_FRAME_SIZE", "4096")
	t.Setenv("LOCKCHAT_KEY_PATH", "/tmp/dek.bin")
	t.Setenv("LOCKCHAT_USERNAME", "alice")
	t.Setenv("LOCKCHAT_HANDSHAKE_TIMEOUT", "2s")
	t.Setenv("LOCKCHAT_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	require.Equal(t, "127.0.0.1:9001", cfg.AdminAddr)
	require.Equal(t, 5, cfg.HistorySize)
	require.Equal(t, uint32(4096), cfg.MaxFrameSize)
	require.Equal(t, "/tmp/dek.bin", cfg.KeyPath)
	require.Equal(t, "alice", cfg.Username)
	require.Equal(t, 2*time.Second, cfg.HandshakeTimeout)
	require.True(t, cfg.Debug)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("LOCKCHAT_HISTORY_SIZE", "lots")

	_, err := Load()
	require.Error(t, err)
}
