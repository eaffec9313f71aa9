package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/config"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS pairing_sessions (
		id                TEXT PRIMARY KEY,
		pairing_token     TEXT NOT NULL UNIQUE,
		device_token      TEXT UNIQUE,
		push_subscription TEXT,
		created_at        TIMESTAMPTZ NOT NULL,
		completed_at      TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS pending_decisions (
		id                TEXT PRIMARY KEY,
		device_token      TEXT NOT NULL,
		tool_use_id       TEXT NOT NULL,
		claude_session_id TEXT NOT NULL,
		title             TEXT NOT NULL,
		message           TEXT NOT NULL,
		decision          TEXT CHECK (decision IN ('allow', 'dismiss')),
		created_at        TIMESTAMPTZ NOT NULL,
		decided_at        TIMESTAMPTZ,
		expires_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_decisions_device_token ON pending_decisions (device_token)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_decisions_created_at ON pending_decisions (created_at)`,
}

// SQLite needs DATETIME declared types so the driver scans them back into time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS pairing_sessions (
		id                TEXT PRIMARY KEY,
		pairing_token     TEXT NOT NULL UNIQUE,
		device_token      TEXT UNIQUE,
		push_subscription TEXT,
		created_at        DATETIME NOT NULL,
		completed_at      DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS pending_decisions (
		id                TEXT PRIMARY KEY,
		device_token      TEXT NOT NULL,
		tool_use_id       TEXT NOT NULL,
		claude_session_id TEXT NOT NULL,
		title             TEXT NOT NULL,
		message           TEXT NOT NULL,
		decision          TEXT CHECK (decision IN ('allow', 'dismiss')),
		created_at        DATETIME NOT NULL,
		decided_at        DATETIME,
		expires_at        DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_decisions_device_token ON pending_decisions (device_token)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_decisions_created_at ON pending_decisions (created_at)`,
}

// Migrate creates the schema if it does not exist yet. It is safe to run on
// every start; a failing statement leaves the schema untouched.
func (db *DB) Migrate(ctx context.Context) error {
	statements, err := schemaFor(db.DB)
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate statement %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Str("driver", db.DriverName()).Int("statements", len(statements)).Msg("schema migrated")
	return nil
}

func schemaFor(db *sqlx.DB) ([]string, error) {
	switch db.DriverName() {
	case config.DriverPostgres:
		return postgresSchema, nil
	case config.DriverSQLite:
		return sqliteSchema, nil
	default:
		return nil, fmt.Errorf("no schema for driver %q", db.DriverName())
	}
}
