// Package postgres implements activity storage and the roster audit log on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS activities (
		name TEXT PRIMARY KEY CHECK (name <> ''),
		description TEXT NOT NULL DEFAULT '',
		schedule TEXT NOT NULL DEFAULT '',
		max_participants INTEGER NOT NULL CHECK (max_participants > 0),
		participants TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS activity_roster_log (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		activity_name TEXT NOT NULL,
		email TEXT NOT NULL,
		participant_count INTEGER NOT NULL,
		max_participants INTEGER NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		topic TEXT NOT NULL,
		partition INTEGER NOT NULL,
		record_offset BIGINT NOT NULL,
		payload JSONB NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_roster_log_activity ON activity_roster_log (activity_name, occurred_at)`,
}

// Migrate creates the tables used by the API and the roster consumer. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// Connect opens a pool, applies maxConns when positive, and verifies connectivity.
func Connect(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
