package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.GRPC.Address)
	assert.Empty(t, cfg.Broker.URL)
	assert.Equal(t, 16, cfg.Surfaces.MailboxSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Surfaces.SendTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.Level().Level())
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notice.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
log:
  level: debug
http:
  address: ":7000"
surfaces:
  names: [main, sidebar]
ticket:
  timeout: 3s
`), 0o600))

	t.Setenv("IM_NOTICE_GRPC_ADDRESS", ":7001")

	cfg, err := LoadConfig(file, []string{"--http.address=:7002"})
	require.NoError(t, err)

	assert.Equal(t, ":7002", cfg.HTTP.Address, "flag wins over file")
	assert.Equal(t, ":7001", cfg.GRPC.Address, "env wins over default")
	assert.Equal(t, []string{"main", "sidebar"}, cfg.Surfaces.Names)
	assert.Equal(t, 3*time.Second, cfg.Ticket.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.Level().Level())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	cfg.Surfaces.Names = []string{"main", "main", " "}
	cfg.Surfaces.MailboxSize = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate "main"`)
	assert.Contains(t, err.Error(), "must not contain blanks")
	assert.Contains(t, err.Error(), "mailbox_size")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
