// Package db provides database schema migration management.
package db

import (
	"fmt"

	"github.com/lingaphealth/fieldsync/internal/errors"
)

// migrations holds the ordered schema migrations. Append only; versions
// already applied on a device are never re-run.
var migrations = []struct {
	version int
	stmts   []string
}{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS pending_records (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				record_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				enqueued_at INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS sync_state (
				id INTEGER PRIMARY KEY CHECK(id = 1),
				is_syncing INTEGER NOT NULL DEFAULT 0,
				last_sync_at INTEGER NOT NULL DEFAULT 0,
				errors TEXT NOT NULL DEFAULT '[]'
			);`,
			`INSERT OR IGNORE INTO sync_state (id) VALUES (1);`,
		},
	},
}

// Migrate brings the agent schema up to the latest version. It is safe to
// call on every startup.
func Migrate(db *DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL DEFAULT (unixepoch())
	);`); err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to create schema_migrations", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to read schema version", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(errors.ErrMigration, "failed to begin migration transaction", err)
		}

		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return errors.Wrap(errors.ErrMigration,
					fmt.Sprintf("migration %d failed", m.version), err)
			}
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrMigration,
				fmt.Sprintf("failed to record migration %d", m.version), err)
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrap(errors.ErrMigration,
				fmt.Sprintf("failed to commit migration %d", m.version), err)
		}
	}

	return nil
}
