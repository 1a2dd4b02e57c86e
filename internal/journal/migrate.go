package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by Migrate.
const SchemaVersion = 1

// Migrate creates the journal tables and records the schema version.
// Running it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	steps := []struct {
		name string
		sql  string
	}{
		{"create detections table", `
			CREATE TABLE IF NOT EXISTS detections (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				label TEXT NOT NULL,
				observed_at TEXT NOT NULL
			);`},
		{"create transitions table", `
			CREATE TABLE IF NOT EXISTS transitions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				label TEXT NOT NULL,
				command TEXT NOT NULL,
				from_state TEXT NOT NULL,
				to_state TEXT NOT NULL,
				at TEXT NOT NULL
			);`},
		{"create idx_detections_observed_at", `CREATE INDEX IF NOT EXISTS idx_detections_observed_at ON detections(observed_at);`},
		{"create idx_transitions_at", `CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);`},
	}
	for _, st := range steps {
		if _, err := tx.ExecContext(ctx, st.sql); err != nil {
			return fmt.Errorf("migrate: %s: %w", st.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
