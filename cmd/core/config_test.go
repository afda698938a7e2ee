package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9999
ledger:
  type: memory_actor
  wal_dir: /tmp/wal
accounts:
  - id: 1
    limit: 100
  - id: 2
    limit: 200
mysql:
  host: db
  user: ledger
  db_name: credit
`), 0644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("WAL_DIR", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, 6000, cfg.GRPC.Port)
	assert.Equal(t, LedgerTypeMemoryActor, cfg.Ledger.Type)
	assert.Equal(t, "", cfg.Ledger.WALDir)
	assert.Equal(t, []domain.Account{{ID: 1, Limit: 100}, {ID: 2, Limit: 200}}, cfg.Accounts)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, LedgerTypeMemoryMutex, cfg.Ledger.Type)
	assert.Equal(t, domain.DefaultAccounts, cfg.Accounts)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadConfigBadPort(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "eighty")

	_, err := loadConfig()
	assert.Error(t, err)
}
