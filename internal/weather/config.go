package weather

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/config"
)

// ServiceConfigFromEnv reads WEATHER_LOOKUP_TIMEOUT, WEATHER_CACHE_TTL,
// WEATHER_CACHE_GRID and WEATHER_STALE_TTL. Caching is off unless
// WEATHER_CACHE_TTL is set.
func ServiceConfigFromEnv(provider Provider, logger zerolog.Logger) ServiceConfig {
	return ServiceConfig{
		Provider:        provider,
		Logger:          logger,
		LookupTimeout:   config.Duration("WEATHER_LOOKUP_TIMEOUT", 5*time.Second),
		CacheTTL:        config.Duration("WEATHER_CACHE_TTL", 0),
		CacheGridSize:   config.Float("WEATHER_CACHE_GRID", 0.1),
		StaleIfErrorTTL: config.Duration("WEATHER_STALE_TTL", time.Hour),
	}
}
