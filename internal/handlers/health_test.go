package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/handlers"
)

func newHealthHandler(t *testing.T, store cache.Store) *handlers.HealthHandler {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return handlers.NewHealthHandler(testConfig(), store, nil, logger)
}

func TestHealthWithMemoryStore(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := cache.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })

	h := newHealthHandler(t, store)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// The database is not configured, so overall health is degraded.
	assert.Equal(t, handlers.StatusDegraded, resp.Status)
	assert.Equal(t, handlers.StatusHealthy, resp.Components["cache"].Status)
	assert.Equal(t, handlers.StatusDegraded, resp.Components["database"].Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthWithDisabledCache(t *testing.T) {
	h := newHealthHandler(t, cache.NewDisabled())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, handlers.StatusDegraded, resp.Components["cache"].Status)
}

func TestLiveness(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := cache.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })

	h := newHealthHandler(t, store)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestReadiness(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := cache.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })

	h := newHealthHandler(t, store)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
}
