package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/models"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	r := newTestReconciler(&repoFake{}, &carrierFake{}, &producerFake{}).
		WithSettings(5*time.Millisecond, time.Millisecond, time.Millisecond, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestTriggerForcesCycle(t *testing.T) {
	repo := &repoFake{items: []*models.Shipment{
		shipment(1, "TN1", models.ShipmentStatusInTransit),
	}}
	cf := &carrierFake{snaps: map[string]carrier.Snapshot{
		"TN1": {Status: "out_for_delivery"},
	}}
	pf := &producerFake{}

	// Interval far in the future: only Trigger can start a cycle.
	r := New(repo, cf, pf, &limiterFake{allowed: true}, "shipment.updated").
		WithSettings(time.Hour, time.Millisecond, time.Millisecond, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Trigger()

	require.Eventually(t, func() bool {
		return len(pf.events()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	st := r.Stats()
	require.NotNil(t, st.LastTriggerAt)
	require.NotNil(t, st.LastCycleAt)

	cancel()
	<-done
}
