package carrier

import "context"

// Snapshot is the carrier's current-known state for one tracking number.
// Empty fields mean "not supplied by the provider" and must leave the
// stored value untouched (merge-on-present).
type Snapshot struct {
	Carrier     string
	Status      string
	Origin      string
	Destination string

	// EstimatedDelivery is the raw provider timestamp (RFC3339 with Z).
	// The caller parses it and ignores malformed values.
	EstimatedDelivery string
}

type Client interface {
	GetTrackingInfo(ctx context.Context, trackingNumber string) (Snapshot, error)
}
