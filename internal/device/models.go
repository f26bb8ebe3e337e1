// Package device stores the single Spouty device record and implements the
// operations the transports expose over it.
package device

import (
	"errors"
	"strings"
	"time"

	"github.com/spouty/spouty/internal/plant"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
)

// LEDState is the desired state of the device LED.
type LEDState string

const (
	LEDOn  LEDState = "on"
	LEDOff LEDState = "off"
)

// ParseLEDState accepts "on" or "off" in any case.
func ParseLEDState(s string) (LEDState, error) {
	switch LEDState(strings.ToLower(strings.TrimSpace(s))) {
	case LEDOn:
		return LEDOn, nil
	case LEDOff:
		return LEDOff, nil
	default:
		return "", plant.Invalid("state", `must be "on" or "off"`)
	}
}

// StatusInfo is the last computed status and when it was written.
type StatusInfo struct {
	CalculatedStatus plant.Status `json:"calculatedStatus,omitempty" firestore:"calculatedStatus,omitempty"`
	LastUpdate       *time.Time   `json:"lastUpdate,omitempty" firestore:"lastUpdate,omitempty"`
}

// Record is the persisted document for one device.
type Record struct {
	LEDState LEDState             `json:"ledState,omitempty" firestore:"ledState,omitempty"`
	Config   plant.DeviceConfig   `json:"config" firestore:"config"`
	Sensors  *plant.SensorReading `json:"sensors,omitempty" firestore:"sensors,omitempty"`
	Status   StatusInfo           `json:"status" firestore:"status"`
}

// EffectiveLEDState returns the stored LED state, defaulting to off.
func (r *Record) EffectiveLEDState() LEDState {
	if r == nil || r.LEDState == "" {
		return LEDOff
	}
	return r.LEDState
}

// Patch is a partial update. Nil fields are left untouched by Merge.
type Patch struct {
	LEDState   *LEDState
	Difficulty *plant.DifficultyLevel
	Location   *plant.Location
	Sensors    *plant.SensorReading
	Status     *StatusInfo
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.LEDState == nil && p.Difficulty == nil && p.Location == nil &&
		p.Sensors == nil && p.Status == nil
}

// Apply merges the patch into r.
func (p Patch) Apply(r *Record) {
	if p.LEDState != nil {
		r.LEDState = *p.LEDState
	}
	if p.Difficulty != nil {
		r.Config.Difficulty = *p.Difficulty
	}
	if p.Location != nil {
		loc := *p.Location
		r.Config.Location = &loc
	}
	if p.Sensors != nil {
		s := *p.Sensors
		r.Sensors = &s
	}
	if p.Status != nil {
		if p.Status.CalculatedStatus != "" {
			r.Status.CalculatedStatus = p.Status.CalculatedStatus
		}
		if p.Status.LastUpdate != nil {
			t := *p.Status.LastUpdate
			r.Status.LastUpdate = &t
		}
	}
}

// Fields renders the patch as a nested field map. Only the leaves the patch
// names are present, so a merging document store leaves the rest alone.
func (p Patch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})

	if p.LEDState != nil {
		fields["ledState"] = string(*p.LEDState)
	}

	config := make(map[string]interface{})
	if p.Difficulty != nil {
		config["difficulty"] = string(*p.Difficulty)
	}
	if p.Location != nil {
		config["location"] = map[string]interface{}{
			"lat": p.Location.Lat,
			"lon": p.Location.Lon,
		}
	}
	if len(config) > 0 {
		fields["config"] = config
	}

	if p.Sensors != nil {
		fields["sensors"] = map[string]interface{}{
			"luminosity":   p.Sensors.Luminosity,
			"soilMoisture": p.Sensors.SoilMoisture,
			"uvLevel":      p.Sensors.UVLevel,
		}
	}

	if p.Status != nil {
		status := make(map[string]interface{})
		if p.Status.CalculatedStatus != "" {
			status["calculatedStatus"] = string(p.Status.CalculatedStatus)
		}
		if p.Status.LastUpdate != nil {
			status["lastUpdate"] = *p.Status.LastUpdate
		}
		if len(status) > 0 {
			fields["status"] = status
		}
	}

	return fields
}
