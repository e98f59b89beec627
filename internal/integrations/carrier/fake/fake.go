package fake

import (
	"context"
	"hash/fnv"

	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/models"
)

// FakeClient is a local stand-in for a carrier provider: the status is
// deterministic per tracking number so repeated polls are stable.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) GetTrackingInfo(ctx context.Context, trackingNumber string) (carrier.Snapshot, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	// 20% of numbers count as delivered
	status := models.ShipmentStatusInTransit
	if v%5 == 0 {
		status = models.ShipmentStatusDelivered
	}

	return carrier.Snapshot{
		Carrier: "fake",
		Status:  status,
		Origin:  "Springfield",
	}, nil
}
