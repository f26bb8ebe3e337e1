package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spouty/spouty/internal/api"
	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/plant"
	"github.com/spouty/spouty/internal/provider/resilience"
	"github.com/spouty/spouty/internal/weather"
)

type failingRepo struct{}

func (failingRepo) Get(context.Context, string) (*device.Record, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) Merge(context.Context, string, device.Patch) error {
	return errors.New("connection refused")
}

func clearDay() plant.WeatherLookup {
	return plant.WeatherLookupFunc(func(context.Context, float64, float64) weather.Snapshot {
		return weather.Snapshot{Condition: weather.ConditionClear, Temperature: 24}
	})
}

func newTestRouterWith(repo device.Repository, lookup plant.WeatherLookup) http.Handler {
	logger := zerolog.New(io.Discard)
	svc := device.NewService(device.ServiceConfig{
		DeviceID:   "spouty-test",
		Repository: repo,
		Weather:    lookup,
		Logger:     logger,
	})
	return api.NewRouter(api.RouterConfig{
		Version:       "test",
		BuildTime:     "2026-10-19T00:00:00Z",
		Logger:        logger,
		StoreBackend:  "memory",
		DeviceService: svc,
		Registry:      resilience.NewRegistry(),
	})
}

func newTestRouter() http.Handler {
	return newTestRouterWith(device.NewInMemoryRepository(), clearDay())
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_Root(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.String())
}

func TestRouter_HealthCheck(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/ops/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	health := decode[models.Health](t, w)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/ops/ready", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, w).Status)
}

func TestRouter_ReadinessCheck_StoreDown(t *testing.T) {
	w := do(t, newTestRouterWith(failingRepo{}, clearDay()), http.MethodGet, "/ops/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_SystemStatus(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/ops/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, "spouty-test", status.DeviceID)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "store:memory", status.Subsystems[0].Name)
	assert.Empty(t, status.Providers)
}

func TestRouter_SystemStatus_StoreDown(t *testing.T) {
	w := do(t, newTestRouterWith(failingRepo{}, clearDay()), http.MethodGet, "/ops/status", nil)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusFail, status.Status)
	require.NotNil(t, status.Subsystems[0].Detail)
}

func TestRouter_LEDStatus_NeverWritten(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/api/led/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.LEDStatusResponse](t, w)
	assert.Equal(t, "off", resp.State)
	assert.Empty(t, resp.PlantStatus)
}

func TestRouter_SetLED_RoundTrip(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodPost, "/api/led", models.LEDRequest{State: "on"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "on", decode[models.LEDResponse](t, w).State)

	w = do(t, router, http.MethodGet, "/api/led/status", nil)
	assert.Equal(t, "on", decode[models.LEDStatusResponse](t, w).State)
}

func TestRouter_SetLED_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown state", models.LEDRequest{State: "blink"}},
		{"missing state", `{}`},
		{"malformed json", `{"state":`},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(), http.MethodPost, "/api/led", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			problem := decode[models.Problem](t, w)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.NotEmpty(t, problem.TraceID)
		})
	}
}

func TestRouter_SubmitSensorData_MissingFields(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/sensordata", `{"luminosity": 10}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decode[models.Problem](t, w)
	require.Len(t, problem.Errors, 2)
	assert.Equal(t, "soilMoisture", problem.Errors[0].Field)
	assert.Equal(t, "uvLevel", problem.Errors[1].Field)
	assert.Equal(t, models.CodeRequired, problem.Errors[0].Code)
}

func TestRouter_SubmitSensorData_WrongType(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/sensordata", `{"luminosity":"bright","soilMoisture":0.4,"uvLevel":0}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decode[models.Problem](t, w)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "luminosity", problem.Errors[0].Field)
}

func TestRouter_SubmitSensorData_NegativeLuminosity(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/sensordata", `{"luminosity":-1,"soilMoisture":0.4,"uvLevel":0}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decode[models.Problem](t, w)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "luminosity", problem.Errors[0].Field)
}

func TestRouter_SubmitSensorData_Evaluates(t *testing.T) {
	router := newTestRouter()

	// No location stored yet.
	w := do(t, router, http.MethodPost, "/api/sensordata", `{"luminosity":10,"soilMoisture":0.5,"uvLevel":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plant.StatusSadNeedsSun, decode[models.SensorDataResponse](t, w).PlantStatus)

	w = do(t, router, http.MethodPost, "/api/setlocation", `{"lat":-23.55,"lon":-46.63}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/sensordata", `{"luminosity":10,"soilMoisture":0.5,"uvLevel":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plant.StatusNeedsSunNow, decode[models.SensorDataResponse](t, w).PlantStatus)

	w = do(t, router, http.MethodGet, "/api/led/status", nil)
	assert.Equal(t, plant.StatusNeedsSunNow, decode[models.LEDStatusResponse](t, w).PlantStatus)
}

func TestRouter_SubmitSensorData_Thirsty(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/sensordata", `{"luminosity":10,"soilMoisture":0.1,"uvLevel":0}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plant.StatusThirsty, decode[models.SensorDataResponse](t, w).PlantStatus)
}

func TestRouter_SubmitSensorData_StoreDown(t *testing.T) {
	w := do(t, newTestRouterWith(failingRepo{}, clearDay()), http.MethodPost, "/api/sensordata",
		`{"luminosity":10,"soilMoisture":0.5,"uvLevel":0}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.ProblemTypeInternal, decode[models.Problem](t, w).Type)
}

func TestRouter_SetLocation_Invalid(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodPost, "/api/setlocation", `{"lat":91,"lon":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "lat", decode[models.Problem](t, w).Errors[0].Field)

	w = do(t, router, http.MethodPost, "/api/setlocation", `{"lat":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "lon", decode[models.Problem](t, w).Errors[0].Field)
}

func TestRouter_SetDifficulty(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodPost, "/api/setdifficulty", models.DifficultyRequest{Difficulty: "hard"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plant.Hard, decode[models.DifficultyResponse](t, w).Difficulty)

	w = do(t, router, http.MethodPost, "/api/setdifficulty", models.DifficultyRequest{Difficulty: "EXTREME"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.CodeUnknownDifficulty, decode[models.Problem](t, w).Errors[0].Code)
}

func TestRouter_SettingsDoNotClobberEachOther(t *testing.T) {
	router := newTestRouter()

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/setlocation", `{"lat":52.37,"lon":4.89}`).Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/setdifficulty", `{"difficulty":"EASY"}`).Code)

	w := do(t, router, http.MethodGet, "/api/device", nil)
	require.Equal(t, http.StatusOK, w.Code)

	dev := decode[models.DeviceResponse](t, w)
	assert.Equal(t, "spouty-test", dev.DeviceID)
	assert.Equal(t, plant.Easy, dev.Difficulty)
	require.NotNil(t, dev.Location)
	assert.InDelta(t, 52.37, dev.Location.Lat, 1e-9)
	assert.Equal(t, "off", dev.LEDState)
}

func TestRouter_ListDifficulties(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/api/difficulties", nil)

	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.DifficultyList](t, w)
	assert.Equal(t, plant.Medium, list.Default)
	require.Len(t, list.Items, 3)
	assert.Equal(t, plant.Easy, list.Items[0].Level)
	assert.InDelta(t, 0.15, list.Items[0].LowMoisture, 1e-9)
	assert.InDelta(t, 0.85, list.Items[2].HighMoisture, 1e-9)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/led", bytes.NewBufferString("state=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	newTestRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/api/unknown", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/api/unknown", problem.Instance)
	assert.Equal(t, "no route for GET /api/unknown", problem.Detail)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/api/led", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var problem models.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, "/api/led", problem.Instance)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/ops/health", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
