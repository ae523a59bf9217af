// Package store holds the gateway's persistence: users, queue summaries,
// and the audit log, over sqlite (embedded default) or Postgres.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			pw TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_login TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS queue_summaries (
			name TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			deferred_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			pw TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_login TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS queue_summaries (
			name TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			deferred_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)`,
	},
}

// Open connects with the given driver and DSN and bootstraps the schema.
func Open(driver, dsn string) (*sqlx.DB, error) {
	stmts, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return db, nil
}
