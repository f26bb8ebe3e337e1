// Package events publishes device domain events to the configured sinks.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeSensorReadingRecorded = "sensor_reading.recorded"
	TypePlantStatusChanged    = "plant_status.changed"
	TypeLEDStateChanged       = "led_state.changed"
)

// Event is a single domain event.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	DeviceID   string          `json:"deviceId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh ID. Data is JSON-encoded.
func New(eventType, deviceID string, data interface{}) (Event, error) {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		DeviceID:   deviceID,
		OccurredAt: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		evt.Data = raw
	}
	return evt, nil
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// the errors are joined.
type Multi []Publisher

// Publish sends evt to every publisher.
func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
