package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id          TEXT PRIMARY KEY,
	university  TEXT NOT NULL,
	team_name   TEXT NOT NULL,
	comment     TEXT NOT NULL DEFAULT '',
	team_info   TEXT NOT NULL DEFAULT '',
	player_info TEXT NOT NULL DEFAULT '',
	circle_name TEXT NOT NULL DEFAULT '',
	circle_info TEXT NOT NULL DEFAULT '',
	p1_name     TEXT NOT NULL DEFAULT '',
	p1_xp       TEXT NOT NULL DEFAULT '',
	p1_weapons  TEXT NOT NULL DEFAULT '',
	p2_name     TEXT NOT NULL DEFAULT '',
	p2_xp       TEXT NOT NULL DEFAULT '',
	p2_weapons  TEXT NOT NULL DEFAULT '',
	p3_name     TEXT NOT NULL DEFAULT '',
	p3_xp       TEXT NOT NULL DEFAULT '',
	p3_weapons  TEXT NOT NULL DEFAULT '',
	p4_name     TEXT NOT NULL DEFAULT '',
	p4_xp       TEXT NOT NULL DEFAULT '',
	p4_weapons  TEXT NOT NULL DEFAULT '',
	sort_order  INT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS script_lines (
	position INT  PRIMARY KEY,
	speaker  TEXT NOT NULL,
	line     TEXT NOT NULL
);`

// EnsureSchema creates the reference-data tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
