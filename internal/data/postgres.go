// Package data provides low-level data clients and connection factories.
package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roguepikachu/nibb/internal/config"
)

// NewPostgresPool creates a pgx connection pool from NIBB_POSTGRES_URL and checks it answers.
func NewPostgresPool(ctx context.Context, conf config.Config) (*pgxpool.Pool, error) {
	if conf.PostgresURL == "" {
		return nil, fmt.Errorf("postgres url is empty")
	}
	cfg, err := pgxpool.ParseConfig(conf.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
