package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func TestHealthz(t *testing.T) {
	h := SetupRoutes(pingFunc(func(context.Context) error { return nil }), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	h := SetupRoutes(pingFunc(func(context.Context) error { return nil }), fixedCount(3))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body readiness
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, readiness{Database: "ok", Timers: 3}, body)
}

func TestReadyz_DatabaseDown(t *testing.T) {
	h := SetupRoutes(pingFunc(func(context.Context) error { return errors.New("connection refused") }), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
