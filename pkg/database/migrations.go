package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations is an ordered list of idempotent SQL statements.
var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
		email         TEXT        NOT NULL UNIQUE,
		password_hash TEXT        NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id         UUID        PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		full_name  TEXT        NOT NULL DEFAULT '',
		role       TEXT        NOT NULL DEFAULT 'reception' CHECK (role IN ('admin', 'reception')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS visitors (
		id              UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
		first_name      TEXT        NOT NULL,
		last_name       TEXT        NOT NULL,
		phone           TEXT        NOT NULL,
		id_type         TEXT        NOT NULL CHECK (id_type IN ('passport', 'nationalId', 'driverLicense', 'other')),
		id_number       TEXT        NOT NULL,
		photo           TEXT,
		visit_purpose   TEXT        NOT NULL,
		person_to_visit TEXT        NOT NULL,
		check_in_time   TIMESTAMPTZ NOT NULL DEFAULT now(),
		check_out_time  TIMESTAMPTZ,
		is_checked_out  BOOLEAN     NOT NULL DEFAULT false,
		created_by      UUID        REFERENCES users(id) ON DELETE SET NULL,
		CONSTRAINT visitors_checkout_consistent CHECK (
			(is_checked_out AND check_out_time IS NOT NULL AND check_out_time >= check_in_time)
			OR (NOT is_checked_out AND check_out_time IS NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS visitors_check_in_time_idx ON visitors (check_in_time DESC)`,
	`CREATE INDEX IF NOT EXISTS visitors_active_idx ON visitors (is_checked_out) WHERE NOT is_checked_out`,
}

// Migrate runs all migrations in order, each in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, m := range migrations {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", i, err)
		}
		if _, err := tx.Exec(ctx, m); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %d: %w", i, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i, err)
		}
	}
	return nil
}
