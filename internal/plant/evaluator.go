package plant

import (
	"context"

	"github.com/spouty/spouty/internal/weather"
)

// WeatherLookup returns a snapshot for a coordinate. Implementations must
// degrade instead of failing.
type WeatherLookup interface {
	Snapshot(ctx context.Context, lat, lon float64) weather.Snapshot
}

// WeatherLookupFunc adapts a function to WeatherLookup.
type WeatherLookupFunc func(ctx context.Context, lat, lon float64) weather.Snapshot

// Snapshot calls f.
func (f WeatherLookupFunc) Snapshot(ctx context.Context, lat, lon float64) weather.Snapshot {
	return f(ctx, lat, lon)
}

// Evaluate maps a reading to a status. Rules are checked in priority order
// and the first match wins. Only the sun check consults the weather.
func Evaluate(ctx context.Context, sensors SensorReading, cfg DeviceConfig, uvQuotaMet bool, lookup WeatherLookup) Status {
	profile := ProfileFor(cfg.EffectiveDifficulty())

	switch {
	case sensors.Luminosity < profile.LowLight:
		return StatusSleeping
	case sensors.SoilMoisture < profile.LowMoisture:
		return StatusThirsty
	case sensors.SoilMoisture > profile.HighMoisture:
		return StatusOverwatered
	case uvQuotaMet:
		return StatusHappy
	}

	if cfg.Location == nil {
		return StatusSadNeedsSun
	}

	snap := weather.ErrorSnapshot()
	if lookup != nil {
		snap = lookup.Snapshot(ctx, cfg.Location.Lat, cfg.Location.Lon)
	}
	if !snap.SunAvailable() {
		return StatusSadNeedsSun
	}
	return StatusNeedsSunNow
}
