package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.App.Port)
	assert.Len(t, cfg.Tiers, 4)
	assert.Equal(t, "commission.order-events", cfg.Kafka.OrderTopic)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  port: 9000
database:
  host: db.internal
kafka:
  brokers: ["k1:9092"]
  process_timeout: 3s
tiers:
  - {tier: T0, min_sales: "0", default_rate: "4"}
  - {tier: T1, min_sales: "500", default_rate: "6.5"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DB_HOST", "override.internal")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Kafka.ProcessTimeout)
	require.Len(t, cfg.Tiers, 2)
	assert.Equal(t, "6.5", cfg.Tiers[1].DefaultRate)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestMergeYAML(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.MergeYAML("crm:\n  webhook_url: http://crm/contacts\n"))
	assert.Equal(t, "http://crm/contacts", cfg.CRM.WebhookURL)
	assert.Equal(t, 8090, cfg.App.Port)
	require.NoError(t, cfg.MergeYAML("  "))
}
