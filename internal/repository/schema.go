package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    plan VARCHAR(50) NOT NULL DEFAULT 'free',
    token_balance BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (token_balance >= 0)
);
`

const createTokenLedgerTable = `
CREATE TABLE IF NOT EXISTS token_ledger (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL,
    reason TEXT NOT NULL,
    job_id UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_token_ledger_user ON token_ledger (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_token_ledger_job ON token_ledger (job_id);
`

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    provider VARCHAR(100) NOT NULL,
    model VARCHAR(100) NOT NULL,
    parameters JSONB NOT NULL,
    cost_tokens BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL CHECK (status IN ('queued', 'processing', 'completed', 'failed')),
    provider_task_id VARCHAR(255),
    output_url TEXT,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (cost_tokens >= 0)
);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs (user_id, created_at DESC);
`

const createCreationsTable = `
CREATE TABLE IF NOT EXISTS creations (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    job_id UUID NOT NULL UNIQUE REFERENCES jobs(id),
    type VARCHAR(50) NOT NULL,
    provider VARCHAR(100) NOT NULL,
    model VARCHAR(100) NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    settings JSONB NOT NULL,
    output_url TEXT NOT NULL,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_creations_user ON creations (user_id, created_at DESC);
`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    event_id VARCHAR(255) PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    amount_paid BIGINT NOT NULL,
    tokens_added BIGINT NOT NULL,
    plan VARCHAR(50) NOT NULL,
    status VARCHAR(20) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates all tables if they do not exist. Safe to run on every
// startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		createUsersTable,
		createTokenLedgerTable,
		createJobsTable,
		createCreationsTable,
		createPaymentsTable,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
