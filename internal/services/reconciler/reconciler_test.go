package reconciler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/parceldesk/parceldesk/internal/broker/messages"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/models"
)

type repoFake struct {
	mu      sync.Mutex
	items   []*models.Shipment
	updated []models.Shipment
	listErr error
}

func (r *repoFake) ListActiveShipments(ctx context.Context) ([]*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*models.Shipment, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *repoFake) UpdateShipment(ctx context.Context, sh *models.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, *sh)
	return nil
}

type carrierFake struct {
	mu    sync.Mutex
	snaps map[string]carrier.Snapshot
	errs  map[string]error
	calls []string
}

func (c *carrierFake) GetTrackingInfo(ctx context.Context, trackingNumber string) (carrier.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, trackingNumber)
	if err, ok := c.errs[trackingNumber]; ok {
		return carrier.Snapshot{}, err
	}
	return c.snaps[trackingNumber], nil
}

type producerFake struct {
	mu        sync.Mutex
	published []messages.ShipmentUpdated
}

func (p *producerFake) Publish(ctx context.Context, topic string, key, value []byte) error {
	var msg messages.ShipmentUpdated
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

func (p *producerFake) events() []messages.ShipmentUpdated {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]messages.ShipmentUpdated, len(p.published))
	copy(out, p.published)
	return out
}

type limiterFake struct{ allowed bool }

func (l *limiterFake) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return l.allowed, 1, nil
}

func shipment(id uint64, tn, status string) *models.Shipment {
	return &models.Shipment{
		ID: id, UserID: 7, TrackingNumber: tn,
		Carrier: "ups", Status: status,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func newTestReconciler(repo *repoFake, cf *carrierFake, pf *producerFake) *Reconciler {
	return New(repo, cf, pf, &limiterFake{allowed: true}, "shipment.updated").
		WithSettings(time.Hour, time.Millisecond, time.Millisecond, 1000)
}

func TestRunCycleUpdatesAndPublishes(t *testing.T) {
	repo := &repoFake{items: []*models.Shipment{
		shipment(1, "1Z999AA10123456784", models.ShipmentStatusInTransit),
		shipment(2, "9400100000000000000000", models.ShipmentStatusPending),
	}}
	cf := &carrierFake{snaps: map[string]carrier.Snapshot{
		"1Z999AA10123456784":     {Status: "delivered"},
		"9400100000000000000000": {Status: "pending"}, // unchanged
	}}
	pf := &producerFake{}

	r := newTestReconciler(repo, cf, pf)
	require.NoError(t, r.runCycle(context.Background()))

	require.Len(t, repo.updated, 1)
	require.Equal(t, models.ShipmentStatusDelivered, repo.updated[0].Status)

	events := pf.events()
	require.Len(t, events, 1)
	require.Equal(t, messages.KindStatusChangeAuto, events[0].Kind)
	require.Equal(t, uint64(7), events[0].UserID)
	require.Equal(t, "1Z999AA10123456784", events[0].Shipment.TrackingNumber)

	st := r.Stats()
	require.Equal(t, int64(2), st.TotalScanned)
	require.Equal(t, int64(1), st.TotalUpdated)
	require.Equal(t, int64(0), st.TotalErrors)
}

func TestRunCycleCarrierFailureSkipsRecord(t *testing.T) {
	repo := &repoFake{items: []*models.Shipment{
		shipment(1, "TNFAIL", models.ShipmentStatusInTransit),
		shipment(2, "TNOK", models.ShipmentStatusInTransit),
	}}
	cf := &carrierFake{
		errs:  map[string]error{"TNFAIL": errors.New("provider down")},
		snaps: map[string]carrier.Snapshot{"TNOK": {Status: "delivered"}},
	}
	pf := &producerFake{}

	r := newTestReconciler(repo, cf, pf)
	require.NoError(t, r.runCycle(context.Background()))

	// The failing record produced no write and no event, but the walk
	// carried on to the next one.
	require.Len(t, repo.updated, 1)
	require.Equal(t, "TNOK", repo.updated[0].TrackingNumber)
	require.Len(t, pf.events(), 1)
}

func TestRunCycleIdempotent(t *testing.T) {
	repo := &repoFake{items: []*models.Shipment{
		shipment(1, "TN1", models.ShipmentStatusInTransit),
	}}
	cf := &carrierFake{snaps: map[string]carrier.Snapshot{
		"TN1": {Status: "delivered"},
	}}
	pf := &producerFake{}

	r := newTestReconciler(repo, cf, pf)
	require.NoError(t, r.runCycle(context.Background()))
	require.NoError(t, r.runCycle(context.Background()))

	// Second cycle saw the same snapshot and wrote nothing.
	require.Len(t, repo.updated, 1)
	require.Len(t, pf.events(), 1)
}

func TestRunCycleListError(t *testing.T) {
	repo := &repoFake{listErr: errors.New("db down")}
	r := newTestReconciler(repo, &carrierFake{}, &producerFake{})

	err := r.runCycle(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list active shipments")
}

func TestStatsInitial(t *testing.T) {
	r := newTestReconciler(&repoFake{}, &carrierFake{}, &producerFake{})
	st := r.Stats()
	require.False(t, st.StartedAt.IsZero())
	require.Nil(t, st.LastCycleAt)
	require.Nil(t, st.LastTriggerAt)
}
