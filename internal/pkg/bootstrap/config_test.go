package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  name: auction-service
  port: 9000
  site_timezone: Europe/Berlin
infra:
  kafka: {brokers: "k1:9092, k2:9092", winner_topic: winners}
auction:
  lock_backend: redis
  lock_ttl: 7s
  stock_backend: rule
  stock_rule: 'listing.in_stock'
  finalizer:
    batch_size: 10
    schedule: "@every 5s"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auction.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitMergesFileOverDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDRS", "redis-a:6379")

	cfg, err := Init(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers())
	assert.Equal(t, "winners", cfg.Infra.Kafka.WinnerTopic)
	assert.Equal(t, "redis", cfg.Auction.LockBackend)
	assert.Equal(t, 7*time.Second, cfg.Auction.LockTTL)
	// 文件中没有的字段保留默认值
	assert.Equal(t, 3*time.Second, cfg.Auction.LockWait)
	assert.Equal(t, 10, cfg.Auction.Finalizer.BatchSize)
	assert.Equal(t, 4, cfg.Auction.Finalizer.Parallelism)
	assert.Equal(t, "redis-a:6379", cfg.Infra.Redis.Addrs)

	assert.Same(t, cfg, GetCurrentConfig())
}

func TestInitRejectsUnknownBackends(t *testing.T) {
	_, err := Init(writeConfig(t, "auction: {lock_backend: etcd}"))
	assert.ErrorContains(t, err, "lock_backend")

	_, err = Init(writeConfig(t, "auction: {stock_backend: rule}"))
	assert.ErrorContains(t, err, "stock_rule")

	_, err = Init(writeConfig(t, "auction: {store_backend: postgres}"))
	assert.ErrorContains(t, err, "store_backend")

	_, err = Init(writeConfig(t, "auction: {stock_backend: rule, stock_rule: 'true', stock_facts: file}"))
	assert.ErrorContains(t, err, "stock_facts")
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{App: AppConfig{SiteTimezone: "Mars/Olympus"}}
	assert.Equal(t, time.UTC, cfg.Location())
}
