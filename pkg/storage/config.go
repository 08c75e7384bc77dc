package storage

import (
	"errors"
	"fmt"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config for the storage backends
type Config struct {
	// SQL database
	DatabaseDriver   string
	DatabaseURL      string
	DatabaseMaxConns int
	DatabaseMinConns int
	DatabaseTimeout  time.Duration
	ConnMaxLifetime  time.Duration

	// Redis
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
	RedisTimeout    time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		DatabaseDriver:   DriverPostgres,
		DatabaseMaxConns: 20,
		DatabaseMinConns: 2,
		DatabaseTimeout:  10 * time.Second,
		ConnMaxLifetime:  30 * time.Minute,
		RedisDB:          -1,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		RedisTimeout:     3 * time.Second,
	}
}

// ValidateDatabase checks the SQL settings
func (c Config) ValidateDatabase() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %q (must be %s or %s)", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL is required")
	}
	return nil
}

// ValidateRedis checks the Redis settings
func (c Config) ValidateRedis() error {
	if c.RedisURL == "" {
		return errors.New("redis URL is required")
	}
	return nil
}
