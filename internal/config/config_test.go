package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/engine"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabasePath(), cfg.Database.Path)
	assert.Equal(t, engine.DefaultConfig(), cfg.Engine)
	assert.Equal(t, llm.DefaultTimeout, cfg.LLM.Timeout)
	assert.Equal(t, llm.DefaultRateLimit, cfg.LLM.RateLimit)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, DefaultCertDir(), cfg.Server.CertDir)
	assert.True(t, cfg.Snapshots.Auto)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: `+filepath.Join(dir, "ledger.db")+`
owner: alice
llm:
  provider: http
  endpoint: http://localhost:9999/api/classify
  timeout: 3s
rules:
  mode: first
  scope: uncategorized
  workers: 8
flagger:
  order: date
  throttle: 100ms
server:
  tls: true
snapshots:
  auto: false
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Owner)
	assert.True(t, cfg.Server.TLS)
	assert.False(t, cfg.Snapshots.Auto)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.Database.Path)
	assert.Equal(t, llm.ProviderHTTP, cfg.LLM.Provider)
	assert.Equal(t, 3*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, engine.Config{
		Mode:     engine.ModeFirstMatch,
		Scope:    engine.ScopeUncategorized,
		Order:    engine.OrderDate,
		Workers:  8,
		Throttle: 100 * time.Millisecond,
	}, cfg.Engine)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want error
	}{
		{name: "unknown mode", key: "rules.mode", val: "some", want: common.ErrInvalidConfig},
		{name: "unknown order", key: "flagger.order", val: "random", want: common.ErrInvalidConfig},
		{name: "unknown provider", key: "llm.provider", val: "oracle", want: common.ErrInvalidConfig},
		{name: "http without endpoint", key: "llm.provider", val: "http", want: common.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LEDGER_TEST_DIR", "/var/data")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/ledger.db", want: filepath.Join(home, "ledger.db")},
		{in: "$LEDGER_TEST_DIR/ledger.db", want: "/var/data/ledger.db"},
		{in: "/abs/ledger.db", want: "/abs/ledger.db"},
		{in: "~other/ledger.db", want: "~other/ledger.db"},
		{in: "$HOME/ledger.db", want: filepath.Join(home, "ledger.db")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDirectoriesFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, "/xdg/config/ledger", ConfigDir())
	assert.Equal(t, "/xdg/data/ledger/ledger.db", DefaultDatabasePath())
	assert.Equal(t, "/xdg/config/ledger/certs", DefaultCertDir())

	t.Run("relative values are ignored", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "relative/data")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".local", "share", "ledger"), DataDir())
	})
}
