package records

import (
	"strings"
	"time"
)

// ShipmentStatus represents the lifecycle of a shipment.
type ShipmentStatus string

const (
	ShipmentCreated          ShipmentStatus = "CREATED"
	ShipmentReceivedAtOrigin ShipmentStatus = "RECEIVED_AT_ORIGIN"
	ShipmentInTransit        ShipmentStatus = "IN_TRANSIT"
	ShipmentReceivedAtDest   ShipmentStatus = "RECEIVED_AT_DEST"
	ShipmentDelivered        ShipmentStatus = "DELIVERED"
)

var shipmentStatuses = map[ShipmentStatus]struct{}{
	ShipmentCreated:          {},
	ShipmentReceivedAtOrigin: {},
	ShipmentInTransit:        {},
	ShipmentReceivedAtDest:   {},
	ShipmentDelivered:        {},
}

// ParseShipmentStatus converts a string into a known ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, bool) {
	normalized := ShipmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := shipmentStatuses[normalized]
	return normalized, ok
}

// ManifestStatus represents the lifecycle of a manifest.
type ManifestStatus string

const (
	ManifestOpen     ManifestStatus = "OPEN"
	ManifestDeparted ManifestStatus = "DEPARTED"
	ManifestClosed   ManifestStatus = "CLOSED"
)

// Shipment is one consignment identified by its AWB.
type Shipment struct {
	ID        int64
	AWB       string
	Status    ShipmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manifest is a batch of shipments grouped for transport between two hubs.
type Manifest struct {
	ID          int64
	Code        string
	OriginHubID string
	DestHubID   string
	Status      ManifestStatus
}

// Exception severity and type constants.
const (
	ExceptionMisroute = "MISROUTE"
	SeverityHigh      = "HIGH"
)

// Exception records an operational anomaly requiring human follow-up.
type Exception struct {
	ID          string
	ShipmentID  int64
	CNNumber    string
	Type        string
	Severity    string
	Description string
	CreatedAt   time.Time
}
