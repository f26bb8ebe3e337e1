// Package main provides the entrypoint for the Spouty relay API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/api"
	"github.com/spouty/spouty/internal/api/middleware"
	"github.com/spouty/spouty/internal/config"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/events"
	"github.com/spouty/spouty/internal/provider/resilience"
	"github.com/spouty/spouty/internal/telemetry"
	"github.com/spouty/spouty/internal/weather"
	"github.com/spouty/spouty/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "spouty-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	level, err := zerolog.ParseLevel(config.String("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Spouty relay API")

	// APP_PORT wins; PORT is what most hosting platforms inject.
	port := config.String("APP_PORT", config.String("PORT", "10000"))
	env := config.String("APP_ENV", "development")

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version, env)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Open the device store
	store, err := device.OpenStore(ctx, device.StoreConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open device store")
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close device store")
		}
	}()

	// Weather provider behind a circuit breaker, tracked for /ops/status
	registry := resilience.NewRegistry()
	owmCfg := openweathermap.ConfigFromEnv(registry, log)
	if owmCfg.APIKey == "" {
		log.Warn().Msg("OPENWEATHER_API_KEY not set - sun checks will report no sun")
	}
	weatherService := weather.NewService(weather.ServiceConfigFromEnv(openweathermap.NewClient(owmCfg), log))

	// Event sinks
	publisher, err := events.NewPublisher(ctx, events.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	deviceService := device.NewService(device.ServiceConfig{
		DeviceID:   device.IDFromEnv(),
		Repository: store.Repository,
		Weather:    weatherService,
		Publisher:  publisher,
		Logger:     log,
	})
	log.Info().
		Str("device_id", deviceService.DeviceID()).
		Str("store", store.Backend).
		Msg("device service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		RequireTLS:     config.Bool("REQUIRE_TLS", false),
		StoreBackend:   store.Backend,
		DeviceService:  deviceService,
		WeatherService: weatherService,
		Registry:       registry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
