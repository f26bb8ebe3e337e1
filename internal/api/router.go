// Package api provides the HTTP API for the Spouty relay.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/api/handler"
	"github.com/spouty/spouty/internal/api/middleware"
	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/provider/resilience"
	"github.com/spouty/spouty/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	RequireTLS   bool
	StoreBackend string

	DeviceService  *device.Service
	WeatherService *weather.Service
	Registry       *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "spouty-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger, "/ops/health", "/ops/ready")) // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))                            // Panic recovery
	r.Use(chimiddleware.RealIP)                                       // Real IP extraction
	r.Use(middleware.SecurityHeaders)                                 // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))                      // TLS enforcement behind a proxy
	r.Use(middleware.ContentTypeJSON)                                 // JSON content type

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.Method+" "+req.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, models.NewProblem(models.ProblemTypeNotFound, "Method not allowed", http.StatusMethodNotAllowed,
			middleware.GetRequestID(req.Context())).WithDetail(req.Method+" is not supported on "+req.URL.Path))
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		StoreBackend: cfg.StoreBackend,
		Devices:      cfg.DeviceService,
		Registry:     cfg.Registry,
		Weather:      cfg.WeatherService,
	})
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService, cfg.Logger)
	metadataHandler := handler.NewMetadataHandler()

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	sensorRateLimit := middleware.RateLimitByIP(middleware.SensorRateLimit)     // 20 req/min

	r.Get("/", opsHandler.Root)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(standardRateLimit)
		r.Use(middleware.RequireJSON)

		r.Post("/led", deviceHandler.SetLED)
		r.Get("/led/status", deviceHandler.LEDStatus)
		r.With(sensorRateLimit).Post("/sensordata", deviceHandler.SubmitSensorData)
		r.Post("/setlocation", deviceHandler.SetLocation)
		r.Post("/setdifficulty", deviceHandler.SetDifficulty)
		r.Get("/device", deviceHandler.GetDevice)
		r.Get("/difficulties", metadataHandler.ListDifficulties)
	})

	return r
}
