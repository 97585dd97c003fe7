package database

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return NewPoolFromConnString(ctx, cfg.ConnectionString(), cfg, logger)
}

// NewPoolFromConnString creates a pool for connString using the sizing in cfg.
// Test containers hand out their own connection strings, so the address is taken verbatim.
func NewPoolFromConnString(ctx context.Context, connString string, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = int32(cfg.MinConnections)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Int32("max_connections", poolConfig.MaxConns).
		Int32("min_connections", poolConfig.MinConns).
		Msg("creating database connection pool")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("database connection pool created successfully")

	return pool, nil
}
