package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGeckoURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 120*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.CacheFailures)
	assert.False(t, cfg.SigningEnabled)
}

func TestAPIKeysFromJSONMap(t *testing.T) {
	t.Setenv("API_KEYS", `{"etherscan":"abc","moralis":"def"}`)

	cfg := Load()
	assert.Equal(t, "abc", cfg.APIKey("etherscan"))
	assert.Equal(t, "def", cfg.APIKey("moralis"))
	assert.Empty(t, cfg.APIKey("coinmarketcap"))
}

func TestSingleKeyEnvOverridesMap(t *testing.T) {
	t.Setenv("API_KEYS", `{"etherscan":"from-map"}`)
	t.Setenv("ETHERSCAN_API_KEY", "from-env")

	cfg := Load()
	assert.Equal(t, "from-env", cfg.APIKey("etherscan"))
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("MIN_SOURCES", "3")
	t.Setenv("MAX_PRICE_VARIANCE", "12.5")
	t.Setenv("MONITOR_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MinSources)
	assert.InDelta(t, 12.5, cfg.MaxPriceVariance, 1e-9)
	assert.True(t, cfg.MonitorEnabled)
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("MIN_SOURCES", "two")
	t.Setenv("CACHE_FAILURES", "maybe")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.MinSources)
	assert.True(t, cfg.CacheFailures)
}
