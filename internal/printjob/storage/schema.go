package storage

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS print_jobs (
		job_id              TEXT PRIMARY KEY,
		tenant_id           TEXT NOT NULL,
		store_id            TEXT NOT NULL,
		printer_type        TEXT NOT NULL,
		printer_id          TEXT NOT NULL DEFAULT '',
		content             TEXT NOT NULL,
		raw_commands        BYTEA NOT NULL,
		status              TEXT NOT NULL,
		status_message      TEXT NOT NULL DEFAULT '',
		retry_count         INTEGER NOT NULL DEFAULT 0,
		max_retries         INTEGER NOT NULL DEFAULT 3,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		completed_at        TIMESTAMPTZ,
		created_by          TEXT NOT NULL DEFAULT '',
		source              TEXT NOT NULL,
		related_order_id    TEXT NOT NULL DEFAULT '',
		related_entity_id   TEXT NOT NULL DEFAULT '',
		related_entity_type TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_print_jobs_store_created ON print_jobs (store_id, created_at DESC, job_id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_print_jobs_status_updated ON print_jobs (status, updated_at)`,
}

// SQLite keeps timestamps as text; the TIMESTAMP declaration makes the driver parse them back.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS print_jobs (
		job_id              TEXT PRIMARY KEY,
		tenant_id           TEXT NOT NULL,
		store_id            TEXT NOT NULL,
		printer_type        TEXT NOT NULL,
		printer_id          TEXT NOT NULL DEFAULT '',
		content             TEXT NOT NULL,
		raw_commands        BLOB NOT NULL,
		status              TEXT NOT NULL,
		status_message      TEXT NOT NULL DEFAULT '',
		retry_count         INTEGER NOT NULL DEFAULT 0,
		max_retries         INTEGER NOT NULL DEFAULT 3,
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL,
		completed_at        TIMESTAMP,
		created_by          TEXT NOT NULL DEFAULT '',
		source              TEXT NOT NULL,
		related_order_id    TEXT NOT NULL DEFAULT '',
		related_entity_id   TEXT NOT NULL DEFAULT '',
		related_entity_type TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_print_jobs_store_created ON print_jobs (store_id, created_at DESC, job_id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_print_jobs_status_updated ON print_jobs (status, updated_at)`,
}

// Migrate creates the print_jobs table and its indexes when missing
func (s *Storage) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.db.DriverName() == "sqlite3" {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply print job schema: %w", err)
		}
	}

	return nil
}
