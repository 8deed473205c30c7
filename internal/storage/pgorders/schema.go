package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'pending',
  courier_code TEXT NULL,
  courier_tracking_id TEXT NULL,
  courier_status TEXT NULL,
  payment_method TEXT NOT NULL DEFAULT 'cod',
  total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_courier_tracking ON orders(courier_code, courier_tracking_id) WHERE courier_tracking_id IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS tracking_entries (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  courier_code TEXT NOT NULL,
  tracking_id TEXT NOT NULL,
  status TEXT NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  location TEXT NULL,
  event_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_entries_order_event_at ON tracking_entries(order_id, tracking_id, event_at DESC)`,
		// Дедупликация: одна запись на (заказ, трек, статус, текст). details может быть длинным, поэтому md5.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tracking_entries_dedup ON tracking_entries(order_id, tracking_id, status, md5(details))`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
