package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// API settings
	APIAddr  string
	APIKey   string
	DevMode  bool
	LogLevel string

	// Pool seed file (JSON), optional
	PoolsFile string

	// Redis settings, empty disables the redis sink and token directory
	RedisAddr string

	// ClickHouse settings, empty addr disables the journal
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP settings
	HTTPTimeout       time.Duration
	MutationRateLimit float64 // requests per second per client on mutating routes
	MutationBurst     int
	MaxPriceImpactBps uint64 // 0 disables the cap
}

func Load() *Config {
	return &Config{
		// API
		APIAddr:  getEnv("API_ADDR", ":8090"),
		APIKey:   getEnv("API_KEY", ""),
		DevMode:  getBoolEnv("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PoolsFile: getEnv("POOLS_FILE", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "amm"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:       getDurationEnv("HTTP_TIMEOUT", 10*time.Second),
		MutationRateLimit: getFloatEnv("MUTATION_RATE_LIMIT", 20),
		MutationBurst:     getIntEnv("MUTATION_BURST", 40),
		MaxPriceImpactBps: uint64(getIntEnv("MAX_PRICE_IMPACT_BPS", 0)),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIAddr) == "" {
		errs = append(errs, errors.New("API_ADDR is required"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.ClickHouseAddr != "" && c.ClickHouseDatabase == "" {
		errs = append(errs, errors.New("CLICKHOUSE_DATABASE is required when CLICKHOUSE_ADDR is set"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MutationRateLimit <= 0 {
		errs = append(errs, errors.New("MUTATION_RATE_LIMIT must be positive"))
	}
	if c.MutationBurst < 1 {
		errs = append(errs, errors.New("MUTATION_BURST must be at least 1"))
	}
	if c.MaxPriceImpactBps > 10_000 {
		errs = append(errs, errors.New("MAX_PRICE_IMPACT_BPS must be at most 10000"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
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
