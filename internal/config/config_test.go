package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/txservice/state.db
nats:
  url: nats://nats:4222
  reconnect_wait: 5s
ethereum:
  node_url: https://rpc.apothem.network
  l2_network: true
quote:
  timeout: 3s
proxy:
  debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/txservice/state.db", cfg.Database.Path)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, "https://rpc.apothem.network", cfg.Ethereum.NodeURL)
	assert.True(t, cfg.Ethereum.L2Network)
	assert.Equal(t, 3*time.Second, cfg.Quote.Timeout)
	assert.True(t, cfg.Proxy.Debug)

	// untouched keys keep their defaults
	assert.Equal(t, "txservice", cfg.App.Name)
	assert.Equal(t, 60, cfg.NATS.MaxReconnects)
	assert.Equal(t, "safe_transaction_service", cfg.Tasks.Namespace)
	assert.Equal(t, "http://rpc.apothem.network", cfg.Proxy.TargetURL)
	assert.Equal(t, ":8083", cfg.Proxy.ListenAddr)
	assert.Equal(t, int64(32<<20), cfg.Proxy.MaxBodyBytes)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  path: from-file.db
`)
	t.Setenv("TXS_DATABASE_PATH", "from-env.db")
	t.Setenv("TXS_ETHEREUM_L2_NETWORK", "true")
	t.Setenv("TXS_QUOTE_TIMEOUT", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.True(t, cfg.Ethereum.L2Network)
	assert.Equal(t, 250*time.Millisecond, cfg.Quote.Timeout)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "txservice.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Quote.Timeout)
	assert.False(t, cfg.Ethereum.L2Network)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("Missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid timeout", func(t *testing.T) {
		path := writeConfig(t, `
quote:
  timeout: 0s
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "quote.timeout")
	})

	t.Run("Invalid body limit", func(t *testing.T) {
		path := writeConfig(t, `
proxy:
  max_body_bytes: 0
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "proxy.max_body_bytes")
	})

	t.Run("Empty namespace", func(t *testing.T) {
		path := writeConfig(t, `
tasks:
  namespace: ""
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "tasks.namespace")
	})
}

func TestLoad_DotEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TXS_PROXY_TARGET_URL=http://erpc.xinfin.network\nTXS_DATABASE_PATH=dotenv.db\n"), 0o644))
	t.Setenv("TXS_DATABASE_PATH", "shell.db")
	// godotenv sets variables outside t.Setenv
	t.Cleanup(func() { os.Unsetenv("TXS_PROXY_TARGET_URL") })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://erpc.xinfin.network", cfg.Proxy.TargetURL)
	assert.Equal(t, "shell.db", cfg.Database.Path)
}
