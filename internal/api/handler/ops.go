package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/provider/resilience"
	"github.com/spouty/spouty/internal/weather"
)

const readinessTimeout = 2 * time.Second

// OpsConfig wires the dependencies the operational endpoints report on.
type OpsConfig struct {
	Version      string
	BuildTime    string
	StoreBackend string
	Devices      *device.Service
	Registry     *resilience.Registry
	Weather      *weather.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// Root handles GET / with a plain-text liveness line.
func (h *OpsHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusOK, "Spouty relay is up")
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /ops/ready. The relay is ready once the device
// store answers a read.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.checkStore(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "device store is not reachable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	})
}

// SystemStatus handles GET /ops/status - store and provider status.
// Weather provider trouble only degrades the relay since evaluations fall
// back to a night snapshot.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}
	if h.cfg.Devices != nil {
		status.DeviceID = h.cfg.Devices.DeviceID()
	}

	store := models.SubsystemStatus{Name: "store", Status: models.HealthStatusOK}
	if h.cfg.StoreBackend != "" {
		store.Name = "store:" + h.cfg.StoreBackend
	}
	if err := h.checkStore(r.Context()); err != nil {
		detail := err.Error()
		store.Status = models.HealthStatusFail
		store.Detail = &detail
		status.Status = models.HealthStatusFail
	}
	status.Subsystems = append(status.Subsystems, store)

	if h.cfg.Weather != nil {
		stats := h.cfg.Weather.CacheStats()
		detail := "cache disabled"
		if stats.Enabled {
			detail = fmt.Sprintf("cache %d entries (%d fresh)", stats.Entries, stats.FreshEntries)
		}
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "weather",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.cfg.Registry != nil {
		for _, dep := range h.cfg.Registry.Report() {
			p := providerStatus(dep)
			if p.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, p)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkStore(ctx context.Context) error {
	if h.cfg.Devices == nil {
		return fmt.Errorf("no device store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	_, err := h.cfg.Devices.Get(ctx)
	return err
}

func providerStatus(dep *resilience.DependencyHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:      dep.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  dep.CircuitState.String(),
		LastSuccessAt: models.TimestampPtr(dep.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(dep.LastFailureAt),
	}
	switch {
	case dep.IsUnhealthy():
		p.Status = models.HealthStatusFail
	case dep.IsDegraded():
		p.Status = models.HealthStatusDegraded
	}
	if dep.LastError != "" {
		msg := dep.LastError
		p.Message = &msg
	}
	return p
}
