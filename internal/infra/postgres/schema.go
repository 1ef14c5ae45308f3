package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the DDL applied on startup. Statements are idempotent so
// repeated boots are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         UUID PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		seq        BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		scope        TEXT NOT NULL,
		key_hash     TEXT NOT NULL,
		payload_hash TEXT NOT NULL,
		completed    BOOLEAN NOT NULL DEFAULT false,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at   TIMESTAMPTZ,
		PRIMARY KEY (scope, key_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id           UUID PRIMARY KEY,
		at           TIMESTAMPTZ NOT NULL,
		op           TEXT NOT NULL,
		from_account UUID,
		to_account   UUID,
		amount       BIGINT NOT NULL,
		reason       TEXT NOT NULL DEFAULT '',
		success      BOOLEAN NOT NULL,
		replayed     BOOLEAN NOT NULL DEFAULT false,
		error_code   TEXT NOT NULL DEFAULT '',
		from_seq     BIGINT NOT NULL DEFAULT 0,
		to_seq       BIGINT NOT NULL DEFAULT 0,
		from_pre     BIGINT NOT NULL DEFAULT 0,
		from_post    BIGINT NOT NULL DEFAULT 0,
		to_pre       BIGINT NOT NULL DEFAULT 0,
		to_post      BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_from ON ledger_entries (from_account, from_seq)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_to ON ledger_entries (to_account, to_seq)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
