// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Base URLs for the data providers
	CoinGeckoURL     string
	DefiLlamaURL     string
	DexScreenerURL   string
	EthplorerURL     string
	EtherscanURL     string
	CoinMarketCapURL string
	MessariURL       string
	MoralisURL       string

	// API keys for keyed providers, by adapter name
	APIKeys map[string]string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// SQLite database file path
	DatabasePath string

	// Discord webhook for the notification relay
	DiscordWebhookURL string

	// Request timeout applied to one whole aggregation run
	RequestTimeout time.Duration

	// Cache TTLs: the aggregator cache and the short price cache
	CacheTTL      time.Duration
	PriceCacheTTL time.Duration

	// Whether failed lookups are cached under the same TTL as successes
	CacheFailures bool

	// Circuit breaker settings for cross-source consistency
	MinSources       int
	MaxPriceVariance float64
	MaxTVLChange     float64
	CircuitReset     time.Duration

	// Price-spike monitor settings
	MonitorEnabled  bool
	MonitorInterval time.Duration

	// Report signing. An empty key with signing enabled generates a
	// fresh process-lifetime key.
	SigningEnabled bool
	SigningKey     string

	// HTTP rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load creates a new Config from environment variables
func Load() Config {
	apiKeys := map[string]string{}
	if raw := os.Getenv("API_KEYS"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &apiKeys)
	}
	// Single-key convenience variables override the JSON map
	for adapter, env := range map[string]string{
		"etherscan":     "ETHERSCAN_API_KEY",
		"coinmarketcap": "COINMARKETCAP_API_KEY",
		"moralis":       "MORALIS_API_KEY",
		"ethplorer":     "ETHPLORER_API_KEY",
	} {
		if v := os.Getenv(env); v != "" {
			apiKeys[adapter] = v
		}
	}

	return Config{
		Port:              GetEnvOrDefault("PORT", "8080"),
		CoinGeckoURL:      GetEnvOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		DefiLlamaURL:      GetEnvOrDefault("DEFILLAMA_URL", "https://api.llama.fi"),
		DexScreenerURL:    GetEnvOrDefault("DEXSCREENER_URL", "https://api.dexscreener.com"),
		EthplorerURL:      GetEnvOrDefault("ETHPLORER_URL", "https://api.ethplorer.io"),
		EtherscanURL:      GetEnvOrDefault("ETHERSCAN_URL", "https://api.etherscan.io/api"),
		CoinMarketCapURL:  GetEnvOrDefault("COINMARKETCAP_URL", "https://pro-api.coinmarketcap.com/v1"),
		MessariURL:        GetEnvOrDefault("MESSARI_URL", "https://data.messari.io/api/v1"),
		MoralisURL:        GetEnvOrDefault("MORALIS_URL", "https://deep-index.moralis.io/api/v2.2"),
		APIKeys:           apiKeys,
		OtelEndpoint:      GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DatabasePath:      GetEnvOrDefault("DATABASE_PATH", "data/research.db"),
		DiscordWebhookURL: GetEnvOrDefault("DISCORD_WEBHOOK_URL", ""),
		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		CacheTTL:          GetEnvAsDuration("CACHE_TTL", 120*time.Second),
		PriceCacheTTL:     GetEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
		CacheFailures:     GetEnvAsBool("CACHE_FAILURES", true),
		MinSources:        GetEnvAsInt("MIN_SOURCES", 1),
		MaxPriceVariance:  GetEnvAsFloat("MAX_PRICE_VARIANCE", 25.0),
		MaxTVLChange:      GetEnvAsFloat("MAX_TVL_CHANGE", 0.5),
		CircuitReset:      GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),
		MonitorEnabled:    GetEnvAsBool("MONITOR_ENABLED", false),
		MonitorInterval:   GetEnvAsDuration("MONITOR_INTERVAL", 5*time.Minute),
		SigningEnabled:    GetEnvAsBool("SIGNING_ENABLED", false),
		SigningKey:        GetEnvOrDefault("SIGNING_KEY", ""),
		RateLimitRPS:      GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:    GetEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// APIKey returns the configured key for an adapter, or empty when unset.
func (c Config) APIKey(adapter string) string {
	if k, ok := c.APIKeys[adapter]; ok {
		return k
	}
	return ""
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
