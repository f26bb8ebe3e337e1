package openweathermap

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/config"
	"github.com/spouty/spouty/internal/provider/resilience"
)

// ConfigFromEnv builds a client configuration from OPENWEATHER_API_KEY,
// WEATHER_BASE_URL, WEATHER_TIMEOUT and WEATHER_MAX_RETRIES. Retries stay
// off unless WEATHER_MAX_RETRIES is positive. The HTTP client is registered
// with registry.
func ConfigFromEnv(registry *resilience.Registry, logger zerolog.Logger) ClientConfig {
	httpCfg := resilience.DefaultClientConfig(ProviderName)
	httpCfg.Timeout = config.Duration("WEATHER_TIMEOUT", 10*time.Second)
	if retries := config.Int("WEATHER_MAX_RETRIES", 0); retries > 0 {
		httpCfg.MaxRetries = uint64(retries)
	} else {
		httpCfg.DisableRetry = true
	}
	httpCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(logger)
	httpCfg.Registry = registry

	return ClientConfig{
		APIKey:     config.String("OPENWEATHER_API_KEY", ""),
		BaseURL:    config.String("WEATHER_BASE_URL", DefaultBaseURL),
		HTTPClient: resilience.NewClient(httpCfg),
		Registry:   registry,
		Logger:     logger,
	}
}
