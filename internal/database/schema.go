package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the rule and usage tables. It is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS discount_rules (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		emc_code TEXT NOT NULL,
		discount_rule_type TEXT NOT NULL CHECK (discount_rule_type IN ('INTERNAL', 'CUSTOMER')),
		amount NUMERIC(14, 4),
		percentage NUMERIC(7, 4),
		scope JSONB NOT NULL DEFAULT '{}',
		schedule JSONB NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		one_time BOOLEAN NOT NULL DEFAULT FALSE,
		limitation BOOLEAN NOT NULL DEFAULT FALSE,
		max_uses INTEGER CHECK (max_uses > 0),
		cooldown_period TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((amount IS NULL) <> (percentage IS NULL))
	);

	CREATE TABLE IF NOT EXISTS customer_rule_usage (
		customer_id TEXT NOT NULL,
		rule_id UUID NOT NULL REFERENCES discount_rules(id) ON DELETE CASCADE,
		remaining_uses INTEGER NOT NULL,
		last_used_at TIMESTAMPTZ,
		window_started_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (customer_id, rule_id)
	);

	CREATE INDEX IF NOT EXISTS idx_customer_rule_usage_rule_id ON customer_rule_usage(rule_id);
	CREATE INDEX IF NOT EXISTS idx_discount_rules_is_active ON discount_rules(is_active);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
