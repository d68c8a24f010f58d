package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the whole application configuration, populated from environment variables.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lending   LendingConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

// LendingConfig carries the borrowing policy defaults.
// They are passed explicitly into every engine call by the HTTP layer.
type LendingConfig struct {
	MaxActiveLoans     int
	DefaultLoanDays    int
	DailyFine          decimal.Decimal
	DueSoonWindow      time.Duration
	StockSnapshotTTL   time.Duration
	ReconcileMaxRetry  int
	ReconcileRetryBase time.Duration
}

type RateLimitConfig struct {
	Enabled      bool
	PerMinute    int
	Burst        int
	MaxClients   int
	ClientExpiry time.Duration
}

type WorkerConfig struct {
	Concurrency       int
	OverdueSweepCron  string
	StockSnapshotCron string
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	dailyFine, err := decimal.NewFromString(getEnv("LENDING_DAILY_FINE", "1.00"))
	if err != nil {
		return nil, fmt.Errorf("invalid LENDING_DAILY_FINE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Library Lending API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "library"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Lending: LendingConfig{
			MaxActiveLoans:     getEnvInt("LENDING_MAX_ACTIVE_LOANS", 3),
			DefaultLoanDays:    getEnvInt("LENDING_DEFAULT_DAYS", 14),
			DailyFine:          dailyFine,
			DueSoonWindow:      getEnvDuration("LENDING_DUE_SOON_WINDOW", 72*time.Hour),
			StockSnapshotTTL:   getEnvDuration("LENDING_STOCK_SNAPSHOT_TTL", 5*time.Minute),
			ReconcileMaxRetry:  getEnvInt("LENDING_RECONCILE_MAX_RETRY", 10),
			ReconcileRetryBase: getEnvDuration("LENDING_RECONCILE_RETRY_BASE", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getEnvBool("RATE_LIMIT_ENABLED", true),
			PerMinute:    getEnvInt("RATE_LIMIT_PER_MIN", 60),
			Burst:        getEnvInt("RATE_LIMIT_BURST", 10),
			MaxClients:   getEnvInt("RATE_LIMIT_MAX_CLIENTS", 10000),
			ClientExpiry: getEnvDuration("RATE_LIMIT_CLIENT_EXPIRY", 10*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvInt("WORKER_CONCURRENCY", 10),
			OverdueSweepCron:  getEnv("WORKER_OVERDUE_SWEEP_CRON", "0 6 * * *"),
			StockSnapshotCron: getEnv("WORKER_STOCK_SNAPSHOT_CRON", "*/15 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Lending.MaxActiveLoans <= 0 {
		return fmt.Errorf("LENDING_MAX_ACTIVE_LOANS must be positive")
	}
	if c.Lending.DefaultLoanDays <= 0 {
		return fmt.Errorf("LENDING_DEFAULT_DAYS must be positive")
	}
	if c.Lending.DailyFine.IsNegative() {
		return fmt.Errorf("LENDING_DAILY_FINE must not be negative")
	}
	if c.Lending.DueSoonWindow < 0 {
		return fmt.Errorf("LENDING_DUE_SOON_WINDOW must not be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive when rate limiting is enabled")
	}

	if c.App.Environment == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
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

func getEnvBool(key string, defaultValue bool) bool {
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
