package config

import (
	"fmt"
	"strconv"
	"time"

	"library-lending/internal/infrastructure/database"
)

// LoadDatabaseConfig builds the pool configuration from environment variables.
// Unlike Load, malformed numbers and durations are reported instead of defaulted.
func LoadDatabaseConfig() (*database.DBConfig, error) {
	var (
		errs []error
		intOf = func(key, def string) int {
			v, err := strconv.Atoi(getEnv(key, def))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
			}
			return v
		}
		durOf = func(key, def string) time.Duration {
			v, err := time.ParseDuration(getEnv(key, def))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
			}
			return v
		}
	)

	cfg := &database.DBConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              intOf("DB_PORT", "5432"),
		Username:          getEnv("DB_USER", "library"),
		Password:          getEnv("DB_PASSWORD", "secret"),
		DBName:            getEnv("DB_NAME", "library"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(intOf("DB_MAX_CONNECTIONS", "25")),
		MinConns:          int32(intOf("DB_MIN_CONNECTIONS", "5")),
		MaxConnLifetime:   durOf("DB_MAX_CONN_LIFETIME", "5m"),
		MaxConnIdleTime:   durOf("DB_MAX_CONN_IDLE_TIME", "1m"),
		HealthCheckPeriod: durOf("DB_HEALTH_CHECK_PERIOD", "1m"),
		MaxRetries:        intOf("DB_MAX_RETRIES", "5"),
		RetryDelay:        durOf("DB_RETRY_DELAY", "1s"),
		ConnectTimeout:    durOf("DB_CONNECT_TIMEOUT", "10s"),
	}

	if len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}
