package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read through this package only.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers
	Tiingo      TiingoConfig
	Stooq       StooqConfig
	MarketWatch MarketWatchConfig

	// Analytics
	Analytics AnalyticsConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TiingoConfig holds Tiingo API configuration
type TiingoConfig struct {
	APIKey  string
	BaseURL string
}

// StooqConfig holds Stooq CSV download configuration
type StooqConfig struct {
	BaseURL string
}

// MarketWatchConfig holds MarketWatch quote-page configuration
type MarketWatchConfig struct {
	BaseURL string
}

// AnalyticsConfig holds tunables for the recomputation pipeline
type AnalyticsConfig struct {
	// Consecutive failures before a provider is demoted for a ticker.
	ProviderFailureThreshold int

	// Trailing window (observations) for risk metrics.
	RiskWindowDays int

	// Trailing window (calendar days) for benchmark/factor regressions.
	BenchmarkWindowDays int

	// Minimum overlapping observations for benchmark/factor regressions.
	MinRegressionObs int

	// Max views recomputed concurrently by a batch pass.
	MaxConcurrentViews int

	// How far back the returns engine recomputes on each pass.
	ReturnsLookbackDays int

	// Benchmark codes every view is regressed against.
	BenchmarkCodes []string

	// Provider names in preference order.
	ProviderPriority []string
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "folio"),
			User:            getEnv("DB_USER", "folio"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Market data providers
		Tiingo: TiingoConfig{
			APIKey:  getEnv("TIINGO_API_KEY", ""),
			BaseURL: getEnv("TIINGO_BASE_URL", "https://api.tiingo.com"),
		},
		Stooq: StooqConfig{
			BaseURL: getEnv("STOOQ_BASE_URL", "https://stooq.com"),
		},
		MarketWatch: MarketWatchConfig{
			BaseURL: getEnv("MARKETWATCH_BASE_URL", "https://www.marketwatch.com"),
		},

		// Analytics
		Analytics: AnalyticsConfig{
			ProviderFailureThreshold: getEnvAsInt("PROVIDER_FAILURE_THRESHOLD", 3),
			RiskWindowDays:           getEnvAsInt("RISK_WINDOW_DAYS", 252),
			BenchmarkWindowDays:      getEnvAsInt("BENCHMARK_WINDOW_DAYS", 365),
			MinRegressionObs:         getEnvAsInt("MIN_REGRESSION_OBS", 20),
			MaxConcurrentViews:       getEnvAsInt("MAX_CONCURRENT_VIEWS", 4),
			ReturnsLookbackDays:      getEnvAsInt("RETURNS_LOOKBACK_DAYS", 730),
			BenchmarkCodes:           getEnvAsSlice("BENCHMARK_CODES", []string{"SPY", "QQQ"}),
			ProviderPriority:         getEnvAsSlice("PROVIDER_PRIORITY", []string{"tiingo", "stooq", "marketwatch"}),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analytics.ProviderFailureThreshold < 1 {
		return fmt.Errorf("PROVIDER_FAILURE_THRESHOLD must be >= 1")
	}
	if c.Analytics.MinRegressionObs < 2 {
		return fmt.Errorf("MIN_REGRESSION_OBS must be >= 2")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
