// Package weather provides current-weather lookups used to decide whether sun
// is available for the plant.
package weather

import (
	"errors"
	"strings"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrMissingAPIKey       = errors.New("weather API key not configured")
	ErrMalformedResponse   = errors.New("malformed weather response")
)

// Observation represents weather data at a specific point and time.
type Observation struct {
	// Location coordinates
	Lat float64
	Lon float64

	// Temperature in Celsius
	Temperature float64

	// Humidity percentage (0-100)
	Humidity float64

	// Weather condition
	Condition   Condition
	Description string
	Icon        string

	// Cloud cover percentage (0-100)
	CloudCover float64

	// Sun times for the observation day; zero if the provider omits them.
	Sunrise time.Time
	Sunset  time.Time

	// Timestamps
	ObservedAt time.Time
	FetchedAt  time.Time
}

// IsNight reports whether the observation was taken outside daylight hours.
// Sunrise/sunset take precedence; otherwise a night icon ("01n") decides.
func (o *Observation) IsNight() bool {
	if !o.Sunrise.IsZero() && !o.Sunset.IsZero() && !o.ObservedAt.IsZero() {
		return o.ObservedAt.Before(o.Sunrise) || o.ObservedAt.After(o.Sunset)
	}
	return strings.HasSuffix(o.Icon, "n")
}

// Snapshot reduces the observation to what the plant evaluator needs. An
// observation without a known condition reads as night.
func (o *Observation) Snapshot() Snapshot {
	if o.Condition == ConditionUnknown || o.Condition == "" {
		snap := UnknownSnapshot()
		snap.Temperature = o.Temperature
		return snap
	}
	return Snapshot{
		Condition:   o.Condition,
		IsNight:     o.IsNight(),
		Temperature: o.Temperature,
	}
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
	ConditionError        Condition = "ERROR"
)

// IsRainFamily reports whether the condition means water is falling.
func (c Condition) IsRainFamily() bool {
	switch c {
	case ConditionRain, ConditionDrizzle, ConditionThunderstorm:
		return true
	default:
		return false
	}
}

// Snapshot is a point-in-time weather read used to decide whether sun
// exposure is currently available.
type Snapshot struct {
	Condition   Condition `json:"condition"`
	IsNight     bool      `json:"isNight"`
	Temperature float64   `json:"temperature"`
}

// SunAvailable reports whether it is daytime and not raining.
func (s Snapshot) SunAvailable() bool {
	return !s.IsNight && !s.Condition.IsRainFamily()
}

// ErrorSnapshot is returned when a lookup fails. It reports night so that
// callers never claim sun is available without evidence.
func ErrorSnapshot() Snapshot {
	return Snapshot{Condition: ConditionError, IsNight: true}
}

// UnknownSnapshot is returned when the provider answered without a usable condition.
func UnknownSnapshot() Snapshot {
	return Snapshot{Condition: ConditionUnknown, IsNight: true}
}
