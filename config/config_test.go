package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NetworkSignet, cfg.Network)
	assert.Equal(t, DefaultEsploraURL, cfg.Esplora.URL)
	assert.Equal(t, 5, cfg.Esplora.StopGap)
	assert.Equal(t, 5, cfg.Esplora.ParallelRequests)
	assert.Contains(t, cfg.Descriptors.External, "/84'/1'/0'/0/*")
	assert.Contains(t, cfg.Descriptors.Internal, "/84'/1'/0'/1/*")
}

func TestLoadConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeFile(t, "walletd.yml", `
network: signet
esplora:
  url: http://localhost:3002
  stop_gap: 20
store:
  type: memory
api:
  listen_addr: 127.0.0.1:18740
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3002", cfg.Esplora.URL)
	assert.Equal(t, 20, cfg.Esplora.StopGap)
	assert.Equal(t, DefaultParallelRequests, cfg.Esplora.ParallelRequests)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, DefaultStoreDirectory, cfg.Store.Directory)
	assert.Equal(t, "127.0.0.1:18740", cfg.API.ListenAddr)
	assert.Equal(t, DefaultExternalDescriptor, cfg.Descriptors.External)
	assert.Equal(t, 15*time.Second, cfg.EsploraTimeout())
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"unknown network": "network: litecoin\n",
		"unknown key":     "networks: signet\n",
		"zero stop gap":   "esplora:\n  stop_gap: 0\n",
		"empty url":       "esplora:\n  url: \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "walletd.yml", content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadWorkerConfig(t *testing.T) {
	path := writeFile(t, "worker.ini", `
[worker]
heartbeat_interval_ms = 250
error_clear_ms = 1000
`)
	w, err := LoadWorkerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, w.HeartbeatInterval())
	assert.Equal(t, time.Second, w.ErrorClearAfter())
	assert.Equal(t, DefaultSubscriberBuffer, w.SubscriberBuffer)

	_, err = LoadWorkerConfig(writeFile(t, "bad.ini", "[worker]\nheartbeat_interval_ms = 0\n"))
	assert.Error(t, err)
}
