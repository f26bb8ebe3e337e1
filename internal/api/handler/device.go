package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/plant"
)

// DeviceHandler serves the endpoints the Spouty device and its companion
// app call.
type DeviceHandler struct {
	service *device.Service
	logger  zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(service *device.Service, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{service: service, logger: logger}
}

// SetLED handles POST /api/led.
func (h *DeviceHandler) SetLED(w http.ResponseWriter, r *http.Request) {
	var req models.LEDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, r, missingIfEmpty("state", req.State)) {
		return
	}

	state, err := device.ParseLEDState(req.State)
	if err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}
	if err := h.service.SetLED(r.Context(), state); err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LEDResponse{State: string(state)})
}

// LEDStatus handles GET /api/led/status, polled by the device.
func (h *DeviceHandler) LEDStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.LEDStatus(r.Context())
	if err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LEDStatusResponse{
		State:       string(status.State),
		PlantStatus: status.PlantStatus,
	})
}

// SubmitSensorData handles POST /api/sensordata.
func (h *DeviceHandler) SubmitSensorData(w http.ResponseWriter, r *http.Request) {
	var req models.SensorDataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, r, req.Missing()) {
		return
	}

	status, err := h.service.SubmitSensors(r.Context(), req.Reading())
	if err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SensorDataResponse{PlantStatus: status})
}

// SetLocation handles POST /api/setlocation.
func (h *DeviceHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req models.LocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, r, req.Missing()) {
		return
	}

	loc := plant.Location{Lat: *req.Lat, Lon: *req.Lon}
	if err := h.service.SetLocation(r.Context(), loc); err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LocationResponse{Location: loc})
}

// SetDifficulty handles POST /api/setdifficulty.
func (h *DeviceHandler) SetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req models.DifficultyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, r, missingIfEmpty("difficulty", req.Difficulty)) {
		return
	}

	level, err := plant.ParseDifficulty(req.Difficulty)
	if err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}
	if err := h.service.SetDifficulty(r.Context(), level); err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.DifficultyResponse{Difficulty: level})
}

// GetDevice handles GET /api/device and returns the whole stored record.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context())
	if err != nil {
		response.ServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.DeviceResponse{
		DeviceID:    h.service.DeviceID(),
		LEDState:    string(record.EffectiveLEDState()),
		Difficulty:  record.Config.EffectiveDifficulty(),
		Location:    record.Config.Location,
		Sensors:     record.Sensors,
		PlantStatus: record.Status.CalculatedStatus,
		LastUpdate:  models.TimestampPtr(record.Status.LastUpdate),
	})
}

func missingIfEmpty(field, value string) []string {
	if value == "" {
		return []string{field}
	}
	return nil
}
