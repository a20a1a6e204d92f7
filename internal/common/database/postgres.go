// internal/common/database/postgres.go
// PostgreSQL connection and configuration

package database

import (
    "context"
    "fmt"
    "time"

    "github.com/jmoiron/sqlx"
    _ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresConfig holds connection pool configuration
type PostgresConfig struct {
    MaxOpenConns int
    MaxIdleConns int
    MaxLifetime  time.Duration
}

// DefaultPostgresConfig returns the pool settings used when none are given
func DefaultPostgresConfig() *PostgresConfig {
    return &PostgresConfig{
        MaxOpenConns: 25,
        MaxIdleConns: 5,
        MaxLifetime:  5 * time.Minute,
    }
}

// NewPostgresDBFromURL creates a connection from a URL
func NewPostgresDBFromURL(ctx context.Context, databaseURL string, config *PostgresConfig) (*sqlx.DB, error) {
    if config == nil {
        config = DefaultPostgresConfig()
    }

    db, err := sqlx.Open("postgres", databaseURL)
    if err != nil {
        return nil, fmt.Errorf("failed to open database: %w", err)
    }

    // Configure connection pool
    db.SetMaxOpenConns(config.MaxOpenConns)
    db.SetMaxIdleConns(config.MaxIdleConns)
    db.SetConnMaxLifetime(config.MaxLifetime)

    // Test connection
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, fmt.Errorf("failed to ping database: %w", err)
    }

    return db, nil
}
