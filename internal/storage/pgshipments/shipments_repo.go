package pgshipments

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/models"
)

const shipmentColumns = `
  id, user_id, tracking_number,
  carrier, status, description,
  origin, destination, estimated_delivery,
  created_at, updated_at
`

// CreateShipment inserts the record and fills in ID/timestamps on sh.
func (s *Storage) CreateShipment(ctx context.Context, sh *models.Shipment) error {
	now := time.Now().UTC()

	err := s.db.QueryRow(ctx, `
INSERT INTO shipments (
  user_id, tracking_number, carrier, status, description,
  origin, destination, estimated_delivery, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
RETURNING id
`, sh.UserID, sh.TrackingNumber, sh.Carrier, sh.Status, sh.Description,
		sh.Origin, sh.Destination, sh.EstimatedDelivery, now).Scan(&sh.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrShipmentExists
		}
		return errors.Wrap(err, "insert shipment")
	}

	sh.CreatedAt = now
	sh.UpdatedAt = now
	return nil
}

func (s *Storage) ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE user_id = $1
ORDER BY created_at ASC, id ASC
`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments by user")
	}
	defer rows.Close()

	return scanShipments(rows)
}

// ListActiveShipments returns every shipment whose status is not in the
// terminal set, in a stable order for the reconciler walk. Statuses are
// stored canonical lowercase, so the predicate matches the partial index.
func (s *Storage) ListActiveShipments(ctx context.Context) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE status NOT IN ($1, $2)
ORDER BY id ASC
`, models.ShipmentStatusDelivered, models.ShipmentStatusException)
	if err != nil {
		return nil, errors.Wrap(err, "select active shipments")
	}
	defer rows.Close()

	return scanShipments(rows)
}

// UpdateShipment persists all mutable fields of one record atomically.
func (s *Storage) UpdateShipment(ctx context.Context, sh *models.Shipment) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  carrier = $2,
  status = $3,
  origin = $4,
  destination = $5,
  estimated_delivery = $6,
  updated_at = $7
WHERE id = $1
`, sh.ID, sh.Carrier, sh.Status, sh.Origin, sh.Destination, sh.EstimatedDelivery, sh.UpdatedAt.UTC())
	return errors.Wrap(err, "update shipment")
}

// UpdateShipmentsBatch persists a manual-refresh batch in one
// transaction: either every change lands or none do.
func (s *Storage) UpdateShipmentsBatch(ctx context.Context, shipments []*models.Shipment) error {
	if len(shipments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sh := range shipments {
		_, err := tx.Exec(ctx, `
UPDATE shipments
SET
  carrier = $2,
  status = $3,
  origin = $4,
  destination = $5,
  estimated_delivery = $6,
  updated_at = $7
WHERE id = $1
`, sh.ID, sh.Carrier, sh.Status, sh.Origin, sh.Destination, sh.EstimatedDelivery, sh.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update shipment in batch")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func scanShipments(rows pgx.Rows) ([]*models.Shipment, error) {
	var out []*models.Shipment
	for rows.Next() {
		var sh models.Shipment
		if err := rows.Scan(
			&sh.ID, &sh.UserID, &sh.TrackingNumber,
			&sh.Carrier, &sh.Status, &sh.Description,
			&sh.Origin, &sh.Destination, &sh.EstimatedDelivery,
			&sh.CreatedAt, &sh.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, &sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
