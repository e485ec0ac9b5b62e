package postgres

import (
	"context"
	"fmt"
)

// Users, products and orders live with the storefront, only payments are kept here.
const paymentsSchema = `
CREATE TABLE IF NOT EXISTS payments (
    reference   text PRIMARY KEY,
    order_id    text NOT NULL DEFAULT '',
    amount      bigint NOT NULL CHECK (amount > 0),
    msisdn_hash text NOT NULL DEFAULT '',
    status      text NOT NULL DEFAULT 'PENDING',
    created_at  timestamptz NOT NULL DEFAULT NOW(),
    updated_at  timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS payments_created_at_idx
ON payments (created_at DESC);

CREATE INDEX IF NOT EXISTS payments_order_id_idx
ON payments (order_id) WHERE order_id <> '';
`

// EnsureSchema creates the payments table if it does not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, paymentsSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
