package device

import "context"

// Repository defines the interface for device record persistence.
type Repository interface {
	// Get retrieves the record for a device. Returns ErrDeviceNotFound if
	// nothing has been written yet.
	Get(ctx context.Context, deviceID string) (*Record, error)

	// Merge applies a partial update, creating the record if needed.
	// Fields the patch does not name are preserved.
	Merge(ctx context.Context, deviceID string, patch Patch) error
}
