package pgshipments

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  company_name TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_users_username UNIQUE (username),
  CONSTRAINT uq_users_email UNIQUE (email)
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  tracking_number TEXT NOT NULL,
  carrier TEXT NOT NULL DEFAULT 'unknown',
  status TEXT NOT NULL DEFAULT 'pending',
  description TEXT NULL,
  origin TEXT NULL,
  destination TEXT NULL,
  estimated_delivery TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_shipments_user_tracking UNIQUE (user_id, tracking_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_user_id ON shipments(user_id)`,
		// The reconciler scans by status every cycle; terminal rows are the
		// long tail so a partial index keeps the scan cheap.
		`CREATE INDEX IF NOT EXISTS idx_shipments_active ON shipments(status) WHERE status NOT IN ('delivered', 'exception')`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
