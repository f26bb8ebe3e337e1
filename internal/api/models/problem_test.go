package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spouty/spouty/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("lat must be between -90 and 90").
		WithInstance("/api/setlocation").
		WithErrors([]models.FieldError{{Field: "lat", Message: "must be between -90 and 90", Code: models.CodeOutOfRange}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/api/setlocation", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "lat", p.Errors[0].Field)
	assert.Equal(t, models.CodeOutOfRange, p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "luminosity", Message: "is required", Code: models.CodeRequired},
	})
	p.Instance = "/api/sensordata"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "/api/sensordata", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "luminosity", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		status int
	}{
		{"bad request", models.NewBadRequest("req_1", "bad", nil), models.ProblemTypeValidation, http.StatusBadRequest},
		{"not found", models.NewNotFound("req_1", "gone"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"unsupported media", models.NewUnsupportedMediaType("req_1", "json only"), models.ProblemTypeUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"tls", models.NewTLSRequired("req_1"), models.ProblemTypeTLSRequired, http.StatusForbidden},
		{"rate limit", models.NewTooManyRequests("req_1", "slow down"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "store down"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "not ready"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "req_1", tt.p.TraceID)
			assert.NotEmpty(t, tt.p.Title)
			assert.NotEmpty(t, tt.p.Detail)
		})
	}
}
