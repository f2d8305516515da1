// Package database implements Postgres-backed reference-data storage.
//
// Uses pgx for connection pooling. The schema is two tables (teams,
// script_lines) bootstrapped idempotently at startup.
package database
