package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DDL is portable across SQLite and Postgres: uuids, timestamps (RFC 3339)
// and decimals are TEXT, dates are canonical YYYY-MM-DD strings.
// claim_amount stays TEXT so the stored value is the exact decimal, not a
// float.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id              TEXT PRIMARY KEY,
		fingerprint     TEXT NOT NULL,
		business_name   TEXT NOT NULL,
		filing_type     TEXT NOT NULL,
		case_or_lien_id TEXT,
		filing_date     TEXT,
		claim_amount    TEXT,
		narrative       TEXT,
		owner_name      TEXT,
		email           TEXT,
		mobile          TEXT,
		dnc             BOOLEAN NOT NULL DEFAULT FALSE,
		send_sms        BOOLEAN NOT NULL DEFAULT FALSE,
		send_email      BOOLEAN NOT NULL DEFAULT FALSE,
		status          TEXT NOT NULL,
		send_attempts   INTEGER NOT NULL DEFAULT 0,
		send_error      TEXT,
		source_document TEXT,
		source_type     TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads (fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
	`CREATE TABLE IF NOT EXISTS ingest_jobs (
		id              TEXT PRIMARY KEY,
		source_document TEXT NOT NULL,
		source_type     TEXT,
		content_hash    TEXT NOT NULL,
		status          TEXT NOT NULL,
		stage           TEXT,
		error_message   TEXT,
		lead_id         TEXT,
		started_at      TEXT NOT NULL,
		finished_at     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_jobs_hash ON ingest_jobs (content_hash)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema (%s...): %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	if len(s) > 40 {
		return s[:40]
	}
	return s
}
