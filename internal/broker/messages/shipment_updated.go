package messages

import (
	"time"

	"github.com/parceldesk/parceldesk/internal/models"
)

// Change-event kinds carried in ShipmentUpdated.Kind.
const (
	KindNewShipment      = "new_shipment"
	KindStatusChange     = "status_change"
	KindManualRefresh    = "manual_refresh"
	KindStatusChangeAuto = "status_change_auto"
)

// ShipmentUpdated is the change event published to Kafka whenever a
// shipment record mutates. It is ephemeral: consumed for cache refresh
// and session fan-out, never persisted.
type ShipmentUpdated struct {
	Kind      string           `json:"kind"`
	UserID    uint64           `json:"user_id"`
	Shipment  ShipmentSnapshot `json:"shipment"`
	EmittedAt time.Time        `json:"emitted_at"`
}

type ShipmentSnapshot struct {
	ID                uint64     `json:"id"`
	TrackingNumber    string     `json:"tracking_number"`
	Carrier           string     `json:"carrier"`
	Status            string     `json:"status"`
	Origin            *string    `json:"origin,omitempty"`
	Destination       *string    `json:"destination,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func NewShipmentUpdated(kind string, sh *models.Shipment, emittedAt time.Time) ShipmentUpdated {
	return ShipmentUpdated{
		Kind:   kind,
		UserID: sh.UserID,
		Shipment: ShipmentSnapshot{
			ID:                sh.ID,
			TrackingNumber:    sh.TrackingNumber,
			Carrier:           sh.Carrier,
			Status:            sh.Status,
			Origin:            sh.Origin,
			Destination:       sh.Destination,
			EstimatedDelivery: sh.EstimatedDelivery,
			UpdatedAt:         sh.UpdatedAt,
		},
		EmittedAt: emittedAt,
	}
}
