package registry

import (
	"context"

	"fleetdiag/pkg/models"
)

// Registry is the read-only device registry the diagnostic engine
// consumes. The engine queries it and never mutates it; implementations
// are injected into the detector and workflow at construction.
type Registry interface {
	ListDevices(ctx context.Context) ([]*models.Device, error)
	GetEvents(ctx context.Context, deviceID string, limit int) ([]models.DeviceEvent, error)
	GetDeviceHealth(ctx context.Context, deviceID string) (*models.DeviceHealth, error)
}
