package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine.
// All environment variables are read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Broker endpoint (gateway/TWS style host:port connection)
	Broker BrokerConfig

	// Market data (Yahoo Finance endpoints)
	Yahoo YahooConfig

	// Optional persistence / caching
	Database DatabaseConfig
	Redis    RedisConfig

	// Strategy knobs
	Strategy StrategyConfig

	// Data directory for the earnings calendar and trade history files
	DataDir string

	// Status API
	APIPort string

	// Run loop
	RunInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// BrokerConfig holds broker gateway connection settings.
type BrokerConfig struct {
	Host     string
	Port     string
	ClientID int

	// Reconnect policy applied between cycles after a connectivity failure
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// YahooConfig holds Yahoo Finance endpoints.
type YahooConfig struct {
	ChartBaseURL    string
	CalendarBaseURL string
	QuoteBaseURL    string
	RequestsPerSec  float64
}

// DatabaseConfig holds the optional PostgreSQL audit store settings.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether the audit store should be wired.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis cache settings.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// StrategyConfig holds the reversal-strategy parameters.
type StrategyConfig struct {
	CooldownDays    int
	StopLossPercent float64
	MinPrice        float64
	MinVolume       int64
	ExcludeOTC      bool
	DaysRange       int
	MaxPositions    int
	CapitalRatio    float64
	LongAllocation  float64
	ShortAllocation float64

	// Fill reconciliation
	FillPollAttempts int
	FillPollInterval time.Duration

	// Hour-keyed price cache TTL
	PriceCacheTTL time.Duration
}

// Cooldown returns the buy cooldown as a duration.
func (s StrategyConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownDays) * 24 * time.Hour
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Broker: BrokerConfig{
			Host:              getEnv("BROKER_HOST", "127.0.0.1"),
			Port:              getEnv("BROKER_PORT", "7497"),
			ClientID:          getEnvAsInt("BROKER_CLIENT_ID", 1),
			ReconnectAttempts: getEnvAsInt("BROKER_RECONNECT_ATTEMPTS", 3),
			ReconnectDelay:    getEnvAsDuration("BROKER_RECONNECT_DELAY", "5s"),
		},

		Yahoo: YahooConfig{
			ChartBaseURL:    getEnv("YAHOO_CHART_BASE_URL", "https://query2.finance.yahoo.com/v8/finance/chart"),
			CalendarBaseURL: getEnv("YAHOO_CALENDAR_BASE_URL", "https://finance.yahoo.com/calendar/earnings"),
			QuoteBaseURL:    getEnv("YAHOO_QUOTE_BASE_URL", "https://query2.finance.yahoo.com/v10/finance/quoteSummary"),
			RequestsPerSec:  getEnvAsFloat("YAHOO_REQUESTS_PER_SEC", 2.0),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Strategy: StrategyConfig{
			CooldownDays:     getEnvAsInt("COOLDOWN_DAYS", 10),
			StopLossPercent:  getEnvAsFloat("STOP_LOSS_PERCENT", 0.05),
			MinPrice:         getEnvAsFloat("MIN_PRICE", 5.0),
			MinVolume:        int64(getEnvAsInt("MIN_VOLUME", 100000)),
			ExcludeOTC:       getEnvAsBool("EXCLUDE_OTC", true),
			DaysRange:        getEnvAsInt("DAYS_RANGE", 5),
			MaxPositions:     getEnvAsInt("MAX_POSITIONS", 20),
			CapitalRatio:     getEnvAsFloat("CAPITAL_RATIO", 0.3),
			LongAllocation:   getEnvAsFloat("LONG_ALLOCATION_RATIO", 0.5),
			ShortAllocation:  getEnvAsFloat("SHORT_ALLOCATION_RATIO", 0.5),
			FillPollAttempts: getEnvAsInt("FILL_POLL_ATTEMPTS", 10),
			FillPollInterval: getEnvAsDuration("FILL_POLL_INTERVAL", "1s"),
			PriceCacheTTL:    getEnvAsDuration("PRICE_CACHE_TTL", "1h"),
		},

		DataDir: getEnv("DATA_DIR", "data"),
		APIPort: getEnv("API_PORT", "8087"),

		RunInterval: getEnvAsDuration("RUN_INTERVAL", "4h"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	s := c.Strategy
	if s.CapitalRatio <= 0 || s.CapitalRatio > 1 {
		return fmt.Errorf("CAPITAL_RATIO must be in (0, 1], got %v", s.CapitalRatio)
	}
	if s.LongAllocation < 0 || s.ShortAllocation < 0 {
		return fmt.Errorf("allocation ratios must be non-negative")
	}
	if s.LongAllocation+s.ShortAllocation > 1.001 {
		return fmt.Errorf("LONG_ALLOCATION_RATIO + SHORT_ALLOCATION_RATIO must not exceed 1.0")
	}
	if s.StopLossPercent <= 0 || s.StopLossPercent >= 1 {
		return fmt.Errorf("STOP_LOSS_PERCENT must be in (0, 1), got %v", s.StopLossPercent)
	}
	if s.MaxPositions <= 0 {
		return fmt.Errorf("MAX_POSITIONS must be positive")
	}
	if s.DaysRange < 0 {
		return fmt.Errorf("DAYS_RANGE must not be negative")
	}
	if s.FillPollAttempts < 1 {
		return fmt.Errorf("FILL_POLL_ATTEMPTS must be at least 1, got %d", s.FillPollAttempts)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to the executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
