package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL,
		min_stock_level INT NOT NULL DEFAULT 0,
		current_stock INT NOT NULL DEFAULT 0,
		stock_version BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_batches (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity >= 0),
		expiry_date DATE,
		supplier_ref TEXT,
		received_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_batches_product_fifo
		ON stock_batches (product_id, expiry_date ASC NULLS LAST, received_at ASC)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		loyalty_points INT NOT NULL DEFAULT 0 CHECK (loyalty_points >= 0),
		loyalty_tier TEXT NOT NULL DEFAULT 'BRONZE',
		birthday DATE,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS loyalty_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		delta INT NOT NULL,
		entry_type TEXT NOT NULL,
		transaction_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loyalty_entries_customer
		ON loyalty_entries (customer_id, created_at ASC)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		cashier_id TEXT NOT NULL,
		customer_id TEXT REFERENCES customers(id),
		subtotal_cents BIGINT NOT NULL,
		discount_cents BIGINT NOT NULL DEFAULT 0,
		tier_discount_cents BIGINT NOT NULL DEFAULT 0,
		redeem_discount_cents BIGINT NOT NULL DEFAULT 0,
		tax_rate_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		tax_cents BIGINT NOT NULL DEFAULT 0,
		total_cents BIGINT NOT NULL CHECK (total_cents >= 0),
		payment_method TEXT NOT NULL,
		cash_received_cents BIGINT NOT NULL DEFAULT 0,
		change_cents BIGINT NOT NULL DEFAULT 0,
		points_earned INT NOT NULL DEFAULT 0,
		points_redeemed INT NOT NULL DEFAULT 0,
		voided BOOLEAN NOT NULL DEFAULT false,
		void_reason TEXT,
		voided_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		id BIGSERIAL PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		sku TEXT NOT NULL,
		quantity INT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		discount_cents BIGINT NOT NULL DEFAULT 0,
		line_total_cents BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS batch_allocations (
		id BIGSERIAL PRIMARY KEY,
		transaction_item_id BIGINT NOT NULL REFERENCES transaction_items(id),
		batch_id TEXT NOT NULL REFERENCES stock_batches(id),
		quantity INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS app_users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'cashier',
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// ensureSchema creates all tables on startup. Statements are idempotent so
// restarting against an initialized database is a no-op.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init: %w", err)
		}
	}
	return nil
}
