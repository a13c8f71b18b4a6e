package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/retry"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ConnectAttempts and ConnectRetryDelay bound ConnectWithRetry.
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
}

// NewConnection creates a new database connection pool.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// ConnectWithRetry calls NewConnection up to cfg.ConnectAttempts times with a
// fixed delay between attempts. The database container usually starts after
// the service, so the first few attempts are expected to fail.
func ConnectWithRetry(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	attempt := 0
	db, err := retry.DoWithResult(ctx, retry.FixedDelay(cfg.ConnectAttempts, cfg.ConnectRetryDelay), func() (*DB, error) {
		attempt++
		db, err := NewConnection(ctx, cfg)
		if err != nil {
			logger.Warn("Database not ready",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.ConnectAttempts),
				zap.String("error", logging.SanitizeError(err)))
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("database unavailable after %d attempts: %w", attempt, err)
	}

	logger.Info("Connected to database", zap.Int("attempts", attempt))
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
