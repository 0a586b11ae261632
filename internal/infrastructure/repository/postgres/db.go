package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID int64 = 2026101601

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the claims intake tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/cli startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS policyholders (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	address JSONB NOT NULL DEFAULT '{}'::jsonb,
	linked_policies JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT policyholders_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS autoupload_emails (
	id TEXT PRIMARY KEY,
	policy_holder_id TEXT NOT NULL REFERENCES policyholders(id) ON DELETE CASCADE,
	alias TEXT NOT NULL,
	domain TEXT NOT NULL,
	is_user_generated BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT unique_alias_policyholder_pair UNIQUE (alias, policy_holder_id)
);

CREATE TABLE IF NOT EXISTS claims (
	id TEXT PRIMARY KEY,
	claim_id TEXT NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	event_type TEXT NOT NULL,
	event_date DATE NOT NULL,
	event_location TEXT NOT NULL,
	vehicle_vin TEXT,
	damage_description TEXT NOT NULL,
	estimated_damage_amount DOUBLE PRECISION,
	contact_email TEXT NOT NULL,
	photos JSONB NOT NULL DEFAULT '[]'::jsonb,
	ingest_method TEXT NOT NULL,
	policyholder_id TEXT REFERENCES policyholders(id) ON DELETE SET NULL,
	policy_id TEXT,
	coverage_type TEXT,
	policy_effective_date DATE,
	policy_expiry_date DATE,
	deductible DOUBLE PRECISION,
	coverage_limit DOUBLE PRECISION,
	initial_payout_estimate DOUBLE PRECISION,
	eligibility_validated BOOLEAN,
	matched_by TEXT,
	claim_status TEXT NOT NULL DEFAULT 'draft',
	claim_metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT claims_claim_id_key UNIQUE (claim_id),
	CONSTRAINT claims_status_check CHECK (claim_status IN (
		'draft','submitted','pending_review','under_investigation','approved',
		'partially_approved','denied','closed','reopened'))
);

CREATE TABLE IF NOT EXISTS inbox (
	id TEXT PRIMARY KEY,
	claim_id TEXT NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	event_type TEXT NOT NULL,
	event_date DATE NOT NULL,
	event_location TEXT NOT NULL,
	vehicle_vin TEXT,
	damage_description TEXT NOT NULL,
	estimated_damage_amount DOUBLE PRECISION,
	contact_email TEXT NOT NULL,
	photos JSONB NOT NULL DEFAULT '[]'::jsonb,
	ingest_method TEXT NOT NULL DEFAULT 'email',
	policyholder_id TEXT REFERENCES policyholders(id) ON DELETE SET NULL,
	policy_id TEXT,
	coverage_type TEXT,
	policy_effective_date DATE,
	policy_expiry_date DATE,
	deductible DOUBLE PRECISION,
	coverage_limit DOUBLE PRECISION,
	initial_payout_estimate DOUBLE PRECISION,
	eligibility_validated BOOLEAN,
	matched_by TEXT,
	claim_status TEXT NOT NULL DEFAULT 'draft',
	claim_metadata JSONB,
	inbox_status TEXT NOT NULL DEFAULT 'new',
	converted_claim_id TEXT,
	rejection_reason TEXT,
	assigned_to TEXT,
	priority TEXT NOT NULL DEFAULT 'normal',
	raw_email_content TEXT,
	email_subject TEXT,
	email_sender TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	CONSTRAINT inbox_claim_id_key UNIQUE (claim_id),
	CONSTRAINT inbox_status_check CHECK (inbox_status IN ('new','processing','converted','rejected','archived')),
	CONSTRAINT inbox_priority_check CHECK (priority IN ('low','normal','high','urgent')),
	CONSTRAINT inbox_converted_check CHECK (
		inbox_status <> 'converted' OR (converted_claim_id IS NOT NULL AND processed_at IS NOT NULL))
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_url TEXT NOT NULL,
	content_type TEXT,
	size_bytes BIGINT,
	claim_id TEXT REFERENCES claims(id) ON DELETE SET NULL,
	inbox_id TEXT REFERENCES inbox(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT documents_single_owner_check CHECK (claim_id IS NULL OR inbox_id IS NULL)
);

CREATE TABLE IF NOT EXISTS inbox_conversions (
	inbox_id TEXT PRIMARY KEY,
	inbox_claim_id TEXT NOT NULL,
	claim_id TEXT NOT NULL,
	external_claim_id TEXT NOT NULL,
	state TEXT NOT NULL,
	documents_transferred INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	previous_status TEXT NOT NULL DEFAULT '',
	previous_processed_at TIMESTAMPTZ,
	CONSTRAINT inbox_conversions_state_check CHECK (state IN ('pending','completed'))
);

ALTER TABLE inbox_conversions ADD COLUMN IF NOT EXISTS previous_status TEXT NOT NULL DEFAULT '';
ALTER TABLE inbox_conversions ADD COLUMN IF NOT EXISTS previous_processed_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_autoupload_emails_domain ON autoupload_emails(domain);
CREATE INDEX IF NOT EXISTS idx_claims_created_at ON claims(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_claims_policyholder ON claims(policyholder_id);
CREATE INDEX IF NOT EXISTS idx_inbox_created_at ON inbox(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_inbox_status ON inbox(inbox_status);
CREATE INDEX IF NOT EXISTS idx_inbox_policyholder ON inbox(policyholder_id);
CREATE INDEX IF NOT EXISTS idx_documents_claim ON documents(claim_id);
CREATE INDEX IF NOT EXISTS idx_documents_inbox ON documents(inbox_id);
CREATE INDEX IF NOT EXISTS idx_inbox_conversions_claim_id ON inbox_conversions(inbox_claim_id);
CREATE INDEX IF NOT EXISTS idx_inbox_conversions_pending ON inbox_conversions(started_at) WHERE state = 'pending';
`
