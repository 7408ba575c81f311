// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jwtly10/tradedesk/internal/cache"
	"github.com/jwtly10/tradedesk/internal/feed"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/storage"
	"github.com/jwtly10/tradedesk/internal/types"
)

type OandaConfig struct {
	AccountID    string
	APIKey       string
	APIURL       string
	Instruments  []string
	Granularity  feed.CandlestickGranularity
	BackfillDays int
}

// Enabled reports whether historic candles should be fetched on start.
func (o OandaConfig) Enabled() bool {
	return o.AccountID != "" && o.APIKey != "" && len(o.Instruments) > 0
}

type Config struct {
	HTTPAddr       string
	InitialBalance float64
	HistoryLimit   int

	LogLevel    string
	LogFormat   string
	DebugTopics string

	DB       storage.Config
	Redis    cache.RedisConfig
	CacheTTL time.Duration
	Kafka    feed.KafkaConfig
	Oanda    OandaConfig
	Risk     risk.Config
}

// KafkaEnabled reports whether the market data consumer should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}

// Load reads .env when present, then the environment. Values that fail to
// parse fall back to their defaults with a warning; combinations that can
// never work are returned as ErrInvalidConfig.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	riskDefaults := risk.DefaultConfig()
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		InitialBalance: getEnvAsFloat("INITIAL_BALANCE", 10000),
		HistoryLimit:   getEnvAsInt("HISTORY_LIMIT", 500),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		DebugTopics: getEnv("DEBUG_TOPICS", ""),

		DB: storage.Config{
			Driver: getEnv("DB_DRIVER", storage.DriverSQLite),
			DSN:    getEnv("DB_DSN", ""),
		},
		Redis: cache.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		CacheTTL: getEnvAsDuration("CANDLE_CACHE_TTL", cache.DefaultTTL),
		Kafka: feed.KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "tradedesk_market"),
			GroupID: getEnv("KAFKA_GROUP_ID", "tradedesk"),
		},
		Oanda: OandaConfig{
			AccountID:    getEnv("OANDA_ACCOUNT_ID", ""),
			APIKey:       getEnv("OANDA_API_KEY", ""),
			APIURL:       getEnv("OANDA_API_URL", feed.DefaultOandaURL),
			Instruments:  getEnvAsList("OANDA_INSTRUMENTS"),
			Granularity:  feed.CandlestickGranularity(strings.ToUpper(getEnv("OANDA_GRANULARITY", string(feed.M15)))),
			BackfillDays: getEnvAsInt("OANDA_BACKFILL_DAYS", 7),
		},
		Risk: risk.Config{
			RiskFreeRate:   getEnvAsFloat("RISK_FREE_RATE", riskDefaults.RiskFreeRate),
			PeriodsPerYear: getEnvAsFloat("PERIODS_PER_YEAR", riskDefaults.PeriodsPerYear),
			VaRConfidence:  getEnvAsFloat("VAR_CONFIDENCE", riskDefaults.VaRConfidence),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !(c.InitialBalance >= 0) {
		return fmt.Errorf("initial balance %v: %w", c.InitialBalance, types.ErrInvalidConfig)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history limit %d: %w", c.HistoryLimit, types.ErrInvalidConfig)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Oanda.Enabled() {
		if _, err := c.Oanda.Granularity.ToDuration(); err != nil {
			return err
		}
		if c.Oanda.BackfillDays < 1 {
			return fmt.Errorf("oanda backfill days %d: %w", c.Oanda.BackfillDays, types.ErrInvalidConfig)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("Invalid integer value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("Invalid float value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("Invalid duration value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
