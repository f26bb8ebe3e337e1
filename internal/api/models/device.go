package models

import (
	"github.com/spouty/spouty/internal/plant"
)

// LEDRequest is the body of POST /api/led.
type LEDRequest struct {
	State string `json:"state"`
}

// LEDResponse echoes the stored LED state.
type LEDResponse struct {
	State string `json:"state"`
}

// LEDStatusResponse is polled by the device.
type LEDStatusResponse struct {
	State       string       `json:"state"`
	PlantStatus plant.Status `json:"plantStatus"`
}

// SensorDataRequest is the body of POST /api/sensordata. Fields are pointers
// so that missing values can be told apart from zero readings.
type SensorDataRequest struct {
	Luminosity   *float64 `json:"luminosity"`
	SoilMoisture *float64 `json:"soilMoisture"`
	UVLevel      *float64 `json:"uvLevel"`
}

// Missing lists the JSON names of absent fields.
func (r SensorDataRequest) Missing() []string {
	var missing []string
	if r.Luminosity == nil {
		missing = append(missing, "luminosity")
	}
	if r.SoilMoisture == nil {
		missing = append(missing, "soilMoisture")
	}
	if r.UVLevel == nil {
		missing = append(missing, "uvLevel")
	}
	return missing
}

// Reading converts a complete request into a sensor reading.
func (r SensorDataRequest) Reading() plant.SensorReading {
	var reading plant.SensorReading
	if r.Luminosity != nil {
		reading.Luminosity = *r.Luminosity
	}
	if r.SoilMoisture != nil {
		reading.SoilMoisture = *r.SoilMoisture
	}
	if r.UVLevel != nil {
		reading.UVLevel = *r.UVLevel
	}
	return reading
}

// SensorDataResponse carries the status computed for a reading.
type SensorDataResponse struct {
	PlantStatus plant.Status `json:"plantStatus"`
}

// LocationRequest is the body of POST /api/setlocation.
type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Missing lists the JSON names of absent fields.
func (r LocationRequest) Missing() []string {
	var missing []string
	if r.Lat == nil {
		missing = append(missing, "lat")
	}
	if r.Lon == nil {
		missing = append(missing, "lon")
	}
	return missing
}

// LocationResponse echoes the stored location.
type LocationResponse struct {
	Location plant.Location `json:"location"`
}

// DifficultyRequest is the body of POST /api/setdifficulty.
type DifficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

// DifficultyResponse echoes the stored difficulty.
type DifficultyResponse struct {
	Difficulty plant.DifficultyLevel `json:"difficulty"`
}

// DifficultyProfile is one row of the profile table.
type DifficultyProfile struct {
	Level plant.DifficultyLevel `json:"level"`
	plant.Profile
}

// DifficultyList is returned by GET /api/difficulties.
type DifficultyList struct {
	Default plant.DifficultyLevel `json:"default"`
	Items   []DifficultyProfile   `json:"items"`
}

// DeviceResponse is the full device record.
type DeviceResponse struct {
	DeviceID    string                `json:"deviceId"`
	LEDState    string                `json:"ledState"`
	Difficulty  plant.DifficultyLevel `json:"difficulty"`
	Location    *plant.Location       `json:"location,omitempty"`
	Sensors     *plant.SensorReading  `json:"sensors,omitempty"`
	PlantStatus plant.Status          `json:"plantStatus,omitempty"`
	LastUpdate  *Timestamp            `json:"lastUpdate,omitempty"`
}
