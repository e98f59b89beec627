package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/broker/messages"
	"github.com/parceldesk/parceldesk/internal/cache"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/models"
)

// ErrShipmentExists flags duplicate (user, tracking number) pairs.
var ErrShipmentExists = errors.New("shipment already tracked")

type Repository interface {
	CreateShipment(ctx context.Context, sh *models.Shipment) error
	ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error)
	UpdateShipmentsBatch(ctx context.Context, items []*models.Shipment) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// StatusChange is one entry of a manual-refresh summary.
type StatusChange struct {
	TrackingNumber string `json:"tracking_number"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
}

// RefreshSummary reports the outcome of a whole-account refresh.
type RefreshSummary struct {
	UpdatedCount   int            `json:"updated_count"`
	StatusChanges  []StatusChange `json:"status_changes"`
	TotalShipments int            `json:"total_shipments"`
}

type Service struct {
	repo     Repository
	carrier  carrier.Client
	producer Producer
	cache    cache.BytesCache

	topic     string
	cacheTTL  time.Duration
	existsErr error
}

func New(repo Repository, carrierClient carrier.Client, producer Producer, bytesCache cache.BytesCache, topic string, cacheTTL time.Duration, existsErr error) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		repo: repo, carrier: carrierClient, producer: producer, cache: bytesCache,
		topic: topic, cacheTTL: cacheTTL, existsErr: existsErr,
	}
}

type CreateInput struct {
	TrackingNumber string
	Carrier        string
	Description    string
}

// Create stores a new shipment for the user. The carrier is consulted
// once to seed the initial state; a provider failure degrades to a
// plain "pending" record that the background worker will pick up.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.Shipment, error) {
	now := time.Now().UTC()

	sh := &models.Shipment{
		UserID:         userID,
		TrackingNumber: in.TrackingNumber,
		Carrier:        in.Carrier,
		Status:         models.ShipmentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if sh.Carrier == "" {
		sh.Carrier = models.CarrierUnknown
	}
	if in.Description != "" {
		d := in.Description
		sh.Description = &d
	}

	if snap, err := s.carrier.GetTrackingInfo(ctx, in.TrackingNumber); err != nil {
		slog.Debug("initial carrier lookup skipped", "tracking_number", in.TrackingNumber, "reason", err.Error())
	} else if !sh.ApplySnapshot(snap, now) {
		// Status equals the initial "pending"; the provider's carrier
		// and route data is still worth keeping.
		sh.SeedSnapshot(snap)
	}

	if err := s.repo.CreateShipment(ctx, sh); err != nil {
		if s.existsErr != nil && errors.Is(err, s.existsErr) {
			return nil, ErrShipmentExists
		}
		return nil, err
	}

	if err := s.publish(ctx, messages.NewShipmentUpdated(messages.KindNewShipment, sh, now)); err != nil {
		slog.Error("publish new shipment", "shipment_id", sh.ID, "error", err.Error())
	}
	return sh, nil
}

// List returns the user's shipments, serving from cache when possible.
func (s *Service) List(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	key := cacheKey(userID)

	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var items []*models.Shipment
			if err := json.Unmarshal(b, &items); err == nil {
				return items, nil
			}
			slog.Warn("drop corrupt cache entry", "key", key)
		}
	}

	items, err := s.repo.ListShipmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.storeCache(ctx, key, items)
	return items, nil
}

// RefreshAll re-checks every one of the user's shipments against the
// carrier and persists all resulting changes in a single transaction,
// so a storage failure leaves the account exactly as it was.
func (s *Service) RefreshAll(ctx context.Context, userID uint64) (RefreshSummary, error) {
	items, err := s.repo.ListShipmentsByUser(ctx, userID)
	if err != nil {
		return RefreshSummary{}, err
	}

	summary := RefreshSummary{
		StatusChanges:  []StatusChange{},
		TotalShipments: len(items),
	}
	now := time.Now().UTC()

	var changed []*models.Shipment
	for _, sh := range items {
		if models.IsTerminalStatus(sh.Status) {
			continue
		}
		snap, err := s.carrier.GetTrackingInfo(ctx, sh.TrackingNumber)
		if err != nil {
			slog.Debug("carrier lookup skipped", "tracking_number", sh.TrackingNumber, "reason", err.Error())
			continue
		}
		oldStatus := sh.Status
		if !sh.ApplySnapshot(snap, now) {
			continue
		}
		changed = append(changed, sh)
		summary.UpdatedCount++
		summary.StatusChanges = append(summary.StatusChanges, StatusChange{
			TrackingNumber: sh.TrackingNumber,
			OldStatus:      oldStatus,
			NewStatus:      sh.Status,
		})
	}

	if len(changed) == 0 {
		return summary, nil
	}

	if err := s.repo.UpdateShipmentsBatch(ctx, changed); err != nil {
		return RefreshSummary{}, errors.Wrap(err, "persist refresh batch")
	}

	for _, sh := range changed {
		if err := s.publish(ctx, messages.NewShipmentUpdated(messages.KindManualRefresh, sh, now)); err != nil {
			slog.Error("publish manual refresh", "shipment_id", sh.ID, "error", err.Error())
		}
	}
	return summary, nil
}

// ApplyChangeEvent refreshes derived state after a change event: the
// owner's cached list is rebuilt from storage so reads stay warm.
func (s *Service) ApplyChangeEvent(ctx context.Context, msg messages.ShipmentUpdated) error {
	items, err := s.repo.ListShipmentsByUser(ctx, msg.UserID)
	if err != nil {
		return errors.Wrap(err, "reload shipments for cache")
	}
	s.storeCache(ctx, cacheKey(msg.UserID), items)
	return nil
}

func (s *Service) storeCache(ctx context.Context, key string, items []*models.Shipment) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
		slog.Warn("cache set", "key", key, "error", err.Error())
	}
}

func (s *Service) publish(ctx context.Context, msg messages.ShipmentUpdated) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal change event")
	}
	key := []byte(fmt.Sprintf("%d", msg.UserID))
	return s.producer.Publish(ctx, s.topic, key, b)
}

func cacheKey(userID uint64) string {
	return fmt.Sprintf("shipments:user:%d", userID)
}
