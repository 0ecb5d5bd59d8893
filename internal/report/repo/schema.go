package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

// Tables:
// - credit_report_raw: verbatim inbound payload, one row per run_id
// - credit_reports: canonical document, one row per (run_id, user_id)
// - credit_scores: unique on (user_id, bureau, run_id)
// - credit_accounts: unique on the tradeline natural key
// - ingestion_runs: run ledger
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS credit_report_raw (
		run_id varchar(64) PRIMARY KEY,
		user_id varchar(64) NOT NULL,
		collected_at timestamptz NOT NULL,
		source varchar(16) NOT NULL,
		payload text NOT NULL,
		digest varchar(64) NOT NULL,
		stored_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_reports (
		run_id varchar(64) NOT NULL,
		user_id varchar(64) NOT NULL,
		collected_at timestamptz NOT NULL,
		version varchar(32) NOT NULL,
		document jsonb NOT NULL,
		confidence_score integer,
		PRIMARY KEY (run_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_scores (
		id varchar(32) PRIMARY KEY,
		run_id varchar(64) NOT NULL,
		user_id varchar(64) NOT NULL,
		bureau varchar(16) NOT NULL DEFAULT '',
		score integer,
		status varchar(64) NOT NULL DEFAULT '',
		position integer NOT NULL DEFAULT 0,
		UNIQUE (user_id, bureau, run_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_accounts (
		id varchar(32) PRIMARY KEY,
		run_id varchar(64) NOT NULL,
		user_id varchar(64) NOT NULL,
		category varchar(16) NOT NULL,
		bureau varchar(16) NOT NULL DEFAULT '',
		creditor varchar(256) NOT NULL DEFAULT '',
		account_number_mask varchar(64) NOT NULL DEFAULT '',
		opened_key varchar(10) NOT NULL DEFAULT '',
		opened_on date,
		reported_on date,
		closed_on date,
		last_activity_on date,
		balance numeric(14,2),
		high_balance numeric(14,2),
		credit_limit numeric(14,2),
		past_due numeric(14,2),
		account_status varchar(128) NOT NULL DEFAULT '',
		payment_status varchar(128) NOT NULL DEFAULT '',
		negative boolean NOT NULL DEFAULT false,
		position integer NOT NULL DEFAULT 0,
		document jsonb NOT NULL,
		UNIQUE (user_id, creditor, account_number_mask, bureau, opened_key, category)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_accounts_run ON credit_accounts (run_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_scores_run ON credit_scores (run_id, user_id)`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
		run_id varchar(64) NOT NULL,
		user_id varchar(64) NOT NULL,
		source varchar(16) NOT NULL,
		status varchar(16) NOT NULL,
		row_counts jsonb NOT NULL DEFAULT '{}'::jsonb,
		missing_bureaus jsonb NOT NULL DEFAULT '[]'::jsonb,
		warnings jsonb NOT NULL DEFAULT '[]'::jsonb,
		error_code varchar(32) NOT NULL DEFAULT '',
		error text NOT NULL DEFAULT '',
		confidence_score integer,
		started_at timestamptz NOT NULL,
		finished_at timestamptz,
		PRIMARY KEY (run_id, user_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS credit_report_raw (
		run_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		collected_at TEXT NOT NULL,
		source TEXT NOT NULL,
		payload TEXT NOT NULL,
		digest TEXT NOT NULL,
		stored_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_reports (
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		collected_at TEXT NOT NULL,
		version TEXT NOT NULL,
		document TEXT NOT NULL,
		confidence_score INTEGER,
		PRIMARY KEY (run_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_scores (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		bureau TEXT NOT NULL DEFAULT '',
		score INTEGER,
		status TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (user_id, bureau, run_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_accounts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		bureau TEXT NOT NULL DEFAULT '',
		creditor TEXT NOT NULL DEFAULT '',
		account_number_mask TEXT NOT NULL DEFAULT '',
		opened_key TEXT NOT NULL DEFAULT '',
		opened_on TEXT,
		reported_on TEXT,
		closed_on TEXT,
		last_activity_on TEXT,
		balance REAL,
		high_balance REAL,
		credit_limit REAL,
		past_due REAL,
		account_status TEXT NOT NULL DEFAULT '',
		payment_status TEXT NOT NULL DEFAULT '',
		negative INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		UNIQUE (user_id, creditor, account_number_mask, bureau, opened_key, category)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_accounts_run ON credit_accounts (run_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_scores_run ON credit_scores (run_id, user_id)`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		row_counts TEXT NOT NULL DEFAULT '{}',
		missing_bureaus TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT '[]',
		error_code TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		confidence_score INTEGER,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		PRIMARY KEY (run_id, user_id)
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts := postgresSchema
	if r.db.DriverName() == database.DriverSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
