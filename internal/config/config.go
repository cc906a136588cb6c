package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Boundary refresh
	RefreshInterval time.Duration
	VerifyProbes    int

	// Account cache
	CacheMaxEntries     int
	CacheStalenessSlots int
	CacheRatePerSec     float64
	CacheBurst          int

	// Redis settings (empty addr disables boundary publication)
	RedisAddr string

	// Venue configuration
	PoolConfigPath string

	// HTTP server
	ListenAddr string
	APIKey     string
	DevMode    bool
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// Refresh
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 30*time.Second),
		VerifyProbes:    getIntEnv("VERIFY_PROBES", 0),

		// Cache
		CacheMaxEntries:     getIntEnv("CACHE_MAX_ENTRIES", 4096),
		CacheStalenessSlots: getIntEnv("CACHE_STALENESS_SLOTS", 0),
		CacheRatePerSec:     getFloatEnv("CACHE_RATE_PER_SEC", 0),
		CacheBurst:          getIntEnv("CACHE_BURST", 0),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// Venues
		PoolConfigPath: getEnv("POOL_CONFIG_PATH", "pools.json"),

		// Server
		ListenAddr: getEnv("LISTEN_ADDR", ":8090"),
		APIKey:     getEnv("API_KEY", ""),
		DevMode:    getBoolEnv("DEV_MODE", false),
	}
}

func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.PoolConfigPath == "" {
		return fmt.Errorf("POOL_CONFIG_PATH is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.VerifyProbes < 0 {
		return fmt.Errorf("VERIFY_PROBES must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
