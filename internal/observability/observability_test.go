package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/config"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{Name: "svc"}, config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestLoggerConfigCarriesServiceFields(t *testing.T) {
	app := config.AppConfig{Name: "repair-shop-service", Version: "1.2.0", Env: "production"}

	cfg := loggerConfig(app, config.LoggerConfig{Level: "debug"})

	assert.Equal(t, map[string]interface{}{
		"service": "repair-shop-service",
		"version": "1.2.0",
		"env":     "production",
	}, cfg.InitialFields)
	assert.False(t, cfg.Development)
	assert.Equal(t, zap.DebugLevel, cfg.Level.Level())

	cfg = loggerConfig(config.AppConfig{Env: "development"}, config.LoggerConfig{})
	assert.True(t, cfg.Development)
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/users", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/users", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/users/:id", "GET", "NotFoundError")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/users|GET|200"])
	assert.InDelta(t, 20.0, snap.AvgLatencyMilli["/api/users|GET|200"], 0.001)
	assert.Equal(t, int64(1), snap.Errors["/api/users/:id|GET|NotFoundError"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "x")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestLoggerSetsRequestIDAndRecords(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/items/43", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", resp.Header.Get(HeaderRequestID))

	assert.Equal(t, int64(2), metrics.Snapshot().Requests["/items/:id|GET|204"])
}
