// Package main provides the entrypoint for the Spouty background worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
	"github.com/spouty/spouty/internal/config"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/events"
	"github.com/spouty/spouty/internal/mqttbridge"
	"github.com/spouty/spouty/internal/provider/resilience"
	"github.com/spouty/spouty/internal/telemetry"
	"github.com/spouty/spouty/internal/weather"
	"github.com/spouty/spouty/internal/weather/openweathermap"
	"github.com/spouty/spouty/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "spouty-worker"

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

	log.Info().Str("build_time", BuildTime).Msg("starting Spouty worker")

	// Worker also exposes a health endpoint for the hosting platform
	port := config.String("APP_PORT", config.String("PORT", "10000"))
	env := config.String("APP_ENV", "development")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version, env))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	store, err := device.OpenStore(ctx, device.StoreConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open device store")
	}
	defer store.Close()

	registry := resilience.NewRegistry()
	weatherService := weather.NewService(weather.ServiceConfigFromEnv(
		openweathermap.NewClient(openweathermap.ConfigFromEnv(registry, log)), log))

	publisher, err := events.NewPublisher(ctx, events.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event publisher")
	}
	defer publisher.Close()

	deviceService := device.NewService(device.ServiceConfig{
		DeviceID:   device.IDFromEnv(),
		Repository: store.Repository,
		Weather:    weatherService,
		Publisher:  publisher,
		Logger:     log,
	})

	workerCfg := worker.ConfigFromEnv()
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    workerCfg.Refresh,
		Logger:    log.With().Str("job", "status_refresh").Logger(),
		Refresher: deviceService,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshJob.Start(ctx)
	}()

	// Pub/Sub job trigger
	if workerCfg.PubSubEnabled() {
		jobs := worker.NewJobHandler(refreshJob, deviceService, log)
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        workerCfg.PubSubProject,
			SubscriptionName: workerCfg.PubSubSubscription,
			Jobs:             jobs,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// MQTT bridge
	mqttCfg := mqttbridge.ConfigFromEnv()
	if mqttCfg.Enabled() {
		bridge := mqttbridge.New(mqttCfg, deviceService, log)
		if err := bridge.Start(ctx); err != nil {
			log.Error().Err(err).Msg("mqtt bridge unavailable, continuing without it")
		} else {
			defer bridge.Close()
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  models.HealthStatusOK,
			"version": Version,
			"refresh": refreshJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
