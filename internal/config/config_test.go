package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, "bets.settled", cfg.Stream.SettledStream)
	assert.Equal(t, "bet-ledger", cfg.Stream.ConsumerGroup)
	assert.Equal(t, 1000, cfg.Analytics.FetchLimit)
	assert.Equal(t, 0.5, cfg.Analytics.OddsWidth)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bet-ledger.yaml")
	yamlDoc := `
server:
  addr: ":9999"
  cors_origins: ["https://ledger.example.com"]
redis:
  cache_ttl: 90s
analytics:
  fetch_limit: 500
  odds_width: 0.25
log:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"https://ledger.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 500, cfg.Analytics.FetchLimit)
	assert.Equal(t, 0.25, cfg.Analytics.OddsWidth)
	assert.True(t, cfg.Log.Pretty)

	// untouched sections keep their defaults
	assert.Equal(t, "bet-ledger", cfg.Stream.ConsumerGroup)
	assert.Equal(t, 250, cfg.Analytics.PageSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bet-ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o600))

	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("CONSUMER_ID", "ledger-7")
	t.Setenv("FETCH_LIMIT", "200")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
	assert.Equal(t, "ledger-7", cfg.Stream.ConsumerID)
	assert.Equal(t, 200, cfg.Analytics.FetchLimit)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("FETCH_LIMIT", "0")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch_limit")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	cfg.Database.DSN = ""
	cfg.Stream.SettledStream = ""
	cfg.RateLimit.Burst = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
	assert.Contains(t, err.Error(), "stream")
	assert.Contains(t, err.Error(), "rate_limit")
}
