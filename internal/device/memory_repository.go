package device

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
	}
}

// Get retrieves a device record.
func (r *InMemoryRepository) Get(_ context.Context, deviceID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	return copyRecord(record), nil
}

// Merge applies a partial update.
func (r *InMemoryRepository) Merge(_ context.Context, deviceID string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[deviceID]
	if !ok {
		record = &Record{}
		r.records[deviceID] = record
	}
	patch.Apply(record)
	return nil
}

// copyRecord creates a deep copy of a record.
func copyRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}

	out := &Record{
		LEDState: rec.LEDState,
		Config:   rec.Config,
		Status:   rec.Status,
	}

	if rec.Config.Location != nil {
		loc := *rec.Config.Location
		out.Config.Location = &loc
	}
	if rec.Sensors != nil {
		s := *rec.Sensors
		out.Sensors = &s
	}
	if rec.Status.LastUpdate != nil {
		t := *rec.Status.LastUpdate
		out.Status.LastUpdate = &t
	}

	return out
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
