package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// GetEnvVariable returns the variable or defaultValue when unset.
func GetEnvVariable(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// ParseOptionalTime accepts RFC3339 or a plain date (2006-01-02, midnight UTC).
// Empty input yields nil.
func ParseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: expected RFC3339 or YYYY-MM-DD", s)
	}
	return &t, nil
}

// ParseOptionalDecimal returns fallback for empty input.
func ParseOptionalDecimal(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return fallback, nil
	}
	return decimal.NewFromString(s)
}
