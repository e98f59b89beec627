package models

import (
	"strings"
	"time"

	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
)

// Canonical shipment statuses. Providers spell these every possible way
// ("Delivered", "DELIVERED", "In Transit"); we store the lowercase form and
// compare exactly on it.
const (
	ShipmentStatusPending        = "pending"
	ShipmentStatusInTransit      = "in_transit"
	ShipmentStatusOutForDelivery = "out_for_delivery"
	ShipmentStatusDelivered      = "delivered"
	ShipmentStatusException      = "exception"
	ShipmentStatusUnknown        = "unknown"
)

const CarrierUnknown = "unknown"

type Shipment struct {
	ID             uint64
	UserID         uint64
	TrackingNumber string

	Carrier           string
	Status            string
	Description       *string
	Origin            *string
	Destination       *string
	EstimatedDelivery *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanonicalStatus maps a provider status string onto the canonical set.
// Unmapped strings pass through lowercased with spaces collapsed to
// underscores, so an exotic provider status still round-trips stably.
func CanonicalStatus(s string) string {
	low := strings.ToLower(strings.TrimSpace(s))
	low = strings.ReplaceAll(low, " ", "_")
	switch low {
	case "", ShipmentStatusUnknown:
		return ShipmentStatusUnknown
	case ShipmentStatusPending, "processing", "registered", "info_received":
		return ShipmentStatusPending
	case ShipmentStatusInTransit, "transit", "in_transit_to_destination":
		return ShipmentStatusInTransit
	case ShipmentStatusOutForDelivery:
		return ShipmentStatusOutForDelivery
	case ShipmentStatusDelivered:
		return ShipmentStatusDelivered
	case ShipmentStatusException, "delivery_exception", "failed_attempt":
		return ShipmentStatusException
	default:
		return low
	}
}

// IsTerminalStatus reports whether no further polling is useful.
func IsTerminalStatus(s string) bool {
	c := CanonicalStatus(s)
	return c == ShipmentStatusDelivered || c == ShipmentStatusException
}

// ApplySnapshot merges a carrier snapshot into the shipment and reports
// whether anything changed. A change happens if and only if the snapshot
// carries a status and its canonical form differs from the stored one;
// only then are the remaining present fields merged and updated_at bumped.
// A malformed estimated-delivery value is ignored, the previous one stays.
func (sh *Shipment) ApplySnapshot(snap carrier.Snapshot, now time.Time) bool {
	if snap.Status == "" {
		return false
	}
	next := CanonicalStatus(snap.Status)
	if next == sh.Status {
		return false
	}

	sh.Status = next
	sh.SeedSnapshot(snap)
	sh.UpdatedAt = now
	return true
}

// SeedSnapshot merges the present non-status fields of a snapshot into
// the shipment without recording a status change. Used at creation time
// so the provider's carrier/route data is kept even when the reported
// status equals the initial one.
func (sh *Shipment) SeedSnapshot(snap carrier.Snapshot) {
	if snap.Carrier != "" {
		sh.Carrier = strings.ToLower(snap.Carrier)
	}
	if snap.Origin != "" {
		origin := snap.Origin
		sh.Origin = &origin
	}
	if snap.Destination != "" {
		dest := snap.Destination
		sh.Destination = &dest
	}
	if snap.EstimatedDelivery != "" {
		if t, err := time.Parse(time.RFC3339, snap.EstimatedDelivery); err == nil {
			utc := t.UTC()
			sh.EstimatedDelivery = &utc
		}
	}
}
