package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/spouty/spouty/internal/telemetry"
)

const instrumentationName = "github.com/spouty/spouty/internal/weather"

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// LookupTimeout bounds a single Snapshot call (default: 5 seconds).
	LookupTimeout time.Duration

	// CacheTTL is how long to cache observations. Zero disables caching so
	// every lookup reaches the provider.
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	// Only meaningful when caching is enabled.
	StaleIfErrorTTL time.Duration
}

// Service provides weather data with optional caching.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	lookupTimeout   time.Duration
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration

	mu              sync.RWMutex
	inflight        singleflight.Group
	weatherCache    map[string]*cachedObservation
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedObservation struct {
	observation *Observation
	fetchedAt   time.Time
	expiresAt   time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	lookupTimeout := cfg.LookupTimeout
	if lookupTimeout == 0 {
		lookupTimeout = 5 * time.Second
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 1 * time.Hour
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		lookupTimeout:   lookupTimeout,
		cacheTTL:        cfg.CacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		weatherCache:    make(map[string]*cachedObservation),
		cleanupInterval: 5 * time.Minute,
	}
}

// Snapshot returns the current weather snapshot for a location. It never
// fails: any error degrades to ErrorSnapshot.
func (s *Service) Snapshot(ctx context.Context, lat, lon float64) Snapshot {
	ctx, span := telemetry.Tracer(instrumentationName).Start(ctx, "weather.Snapshot")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	snap := UnknownSnapshot()
	obs, err := s.GetCurrentWeather(ctx, lat, lon)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("weather lookup failed, using degraded snapshot")
		span.RecordError(err)
		span.SetStatus(codes.Error, "weather lookup failed")
		snap = ErrorSnapshot()
	case obs != nil:
		snap = obs.Snapshot()
	}

	span.SetAttributes(
		attribute.String("weather.condition", string(snap.Condition)),
		attribute.Bool("weather.is_night", snap.IsNight),
		attribute.Bool("weather.sun_available", snap.SunAvailable()),
	)
	return snap
}

// GetCurrentWeather returns current weather for a location.
// Uses cached data if caching is enabled and the entry has not expired.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}

	if !s.cacheEnabled() {
		obs, err := s.provider.GetCurrentWeather(ctx, lat, lon)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return obs, nil
	}

	cacheKey := s.cacheKey(lat, lon)
	if obs, ok := s.fresh(cacheKey); ok {
		return obs, nil
	}

	// Concurrent misses for one grid cell share a single provider call.
	v, err, _ := s.inflight.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWeather(ctx, lat, lon, cacheKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Observation), nil
}

func (s *Service) cacheEnabled() bool {
	return s.cacheTTL > 0
}

// fresh returns the cached observation for key if it has not expired.
func (s *Service) fresh(key string) (*Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cached, ok := s.weatherCache[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.observation, true
	}
	return nil, false
}

// fetchWeather fetches weather from provider and updates cache. The cache
// lock is not held during the provider call.
func (s *Service) fetchWeather(ctx context.Context, lat, lon float64, cacheKey string) (*Observation, error) {
	if obs, ok := s.fresh(cacheKey); ok {
		return obs, nil
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Msg("fetching weather from provider")

	obs, err := s.provider.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch weather")

		s.mu.RLock()
		cached, ok := s.weatherCache[cacheKey]
		s.mu.RUnlock()
		if ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale weather data due to provider error")
			return cached.observation, nil
		}

		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	now := time.Now()
	s.mu.Lock()
	s.weatherCache[cacheKey] = &cachedObservation{
		observation: obs,
		fetchedAt:   now,
		expiresAt:   now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded()
	s.mu.Unlock()

	return obs, nil
}

// cacheKey generates a cache key for a location.
// Groups nearby points into grid cells to reduce API calls.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon)
}

// cleanupIfNeeded removes entries past their stale window once per cleanup
// interval. Callers hold s.mu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.weatherCache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.weatherCache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired weather cache entries")
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weatherCache = make(map[string]*cachedObservation)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	for _, c := range s.weatherCache {
		if now.Before(c.expiresAt) {
			fresh++
		}
	}

	stats := CacheStats{
		Enabled:      s.cacheEnabled(),
		Entries:      len(s.weatherCache),
		FreshEntries: fresh,
	}
	if s.provider != nil {
		stats.Provider = s.provider.Name()
	}
	return stats
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Enabled      bool
	Entries      int
	FreshEntries int
	Provider     string
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
