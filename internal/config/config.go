// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the whale intelligence pipeline.
type Config struct {
	// Chain API
	ChainAPIURL       string
	ChainFeedURL      string
	APIMinInterval    time.Duration
	APIMaxRetries     int
	APITimeout        time.Duration
	RateLimitCooldown time.Duration

	// Price oracle
	PriceAPIURL   string
	PriceCacheTTL time.Duration

	// Discovery
	DiscoveryInterval time.Duration
	UpdateInterval    time.Duration
	TopN              int
	ScanWindow        int
	MinBalanceSTX     float64
	MinTxCount30d     int

	// Monitoring
	AlertThresholdUSD float64
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// Storage
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// HTTP server
	ServerPort int
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Chain API
		ChainAPIURL:       getEnv("CHAIN_API_URL", "https://api.mainnet.hiro.so"),
		ChainFeedURL:      getEnv("CHAIN_FEED_URL", "wss://api.mainnet.hiro.so/extended/v1/ws"),
		APIMinInterval:    time.Duration(getEnvInt("API_MIN_INTERVAL_MS", 250)) * time.Millisecond,
		APIMaxRetries:     getEnvInt("API_MAX_RETRIES", 3),
		APITimeout:        time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitCooldown: time.Duration(getEnvInt("RATE_LIMIT_COOLDOWN_SECONDS", 5)) * time.Second,

		// Price oracle
		PriceAPIURL:   getEnv("PRICE_API_URL", ""),
		PriceCacheTTL: time.Duration(getEnvInt("PRICE_CACHE_TTL_SECONDS", 60)) * time.Second,

		// Discovery
		DiscoveryInterval: time.Duration(getEnvInt("DISCOVERY_INTERVAL_MINUTES", 60)) * time.Minute,
		UpdateInterval:    time.Duration(getEnvInt("UPDATE_INTERVAL_MINUTES", 15)) * time.Minute,
		TopN:              getEnvInt("DISCOVERY_TOP_N", 20),
		ScanWindow:        getEnvInt("DISCOVERY_SCAN_WINDOW", 200),
		MinBalanceSTX:     getEnvFloat("MIN_BALANCE_STX", 100000),
		MinTxCount30d:     getEnvInt("MIN_TX_COUNT_30D", 5),

		// Monitoring
		AlertThresholdUSD: getEnvFloat("ALERT_THRESHOLD_USD", 50000),
		ReconnectDelay:    time.Duration(getEnvInt("RECONNECT_DELAY_SECONDS", 2)) * time.Second,
		MaxReconnectDelay: time.Duration(getEnvInt("MAX_RECONNECT_DELAY_SECONDS", 120)) * time.Second,

		// Storage
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		UseMemory:     getEnvBool("USE_MEMORY_STORE", false),

		// HTTP server
		ServerPort: getEnvInt("SERVER_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.ChainAPIURL == "" {
		return fmt.Errorf("CHAIN_API_URL is required")
	}

	if c.ChainFeedURL == "" {
		return fmt.Errorf("CHAIN_FEED_URL is required")
	}

	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY_STORE is set")
	}

	if c.TopN < 1 {
		return fmt.Errorf("DISCOVERY_TOP_N must be at least 1")
	}

	if c.MinBalanceSTX < 0 {
		return fmt.Errorf("MIN_BALANCE_STX must not be negative")
	}

	if c.AlertThresholdUSD < 0 {
		return fmt.Errorf("ALERT_THRESHOLD_USD must not be negative")
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}

	return nil
}

// MaskedPostgresDSN returns the DSN with most characters hidden for logging.
func (c *Config) MaskedPostgresDSN() string {
	return maskSecret(c.PostgresDSN)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
