package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// NewPool opens a pgx pool and verifies it with a ping
func NewPool(ctx context.Context, dsn string, logger *logrus.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"module":    "database",
		"max_conns": config.MaxConns,
	}).Info("Database connected successfully")

	return pool, nil
}

// ClosePool closes the pool if it was opened
func ClosePool(pool *pgxpool.Pool, logger *logrus.Logger) {
	if pool != nil {
		pool.Close()
		logger.WithField("module", "database").Info("Database disconnected")
	}
}
