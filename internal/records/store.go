package records

import "context"

// Store is the record-store surface the reconciliation engine consumes.
// Find methods return (nil, nil) when no record matches; "not found" is an
// expected business condition, not an error.
type Store interface {
	FindShipmentByAWB(ctx context.Context, awb string) (*Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id int64, status ShipmentStatus) error
	FindManifestByCode(ctx context.Context, code string) (*Manifest, error)
	IsShipmentInManifest(ctx context.Context, manifestID, shipmentID int64) (bool, error)
	AddShipmentToManifest(ctx context.Context, manifestID, shipmentID int64) error
	CreateException(ctx context.Context, exc Exception) error
}
