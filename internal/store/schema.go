/**
 * @description
 * This file holds the idempotent schema bootstrap for the portal database.
 * It is executed at startup so a fresh deployment comes up without a
 * separate migration step.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS identities (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    login_key TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS clients (
    id UUID PRIMARY KEY,
    identity_id UUID NOT NULL UNIQUE REFERENCES identities(id),
    full_name TEXT NOT NULL,
    phone_number TEXT NOT NULL,
    national_id TEXT NOT NULL,
    business_name TEXT NOT NULL,
    business_location TEXT NOT NULL,
    tax_status TEXT NOT NULL,
    account_balance BIGINT NOT NULL DEFAULT 0 CHECK (account_balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    client_id UUID NOT NULL REFERENCES clients(id),
    client_name TEXT NOT NULL,
    type TEXT NOT NULL,
    method TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    reference TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_status_created ON transactions (status, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_client_created ON transactions (client_id, created_at DESC);
CREATE TABLE IF NOT EXISTS portal_stats (
    id BIGSERIAL PRIMARY KEY,
    total_clients BIGINT NOT NULL,
    total_savings BIGINT NOT NULL,
    pending_transactions BIGINT NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the portal tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
