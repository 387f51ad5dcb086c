package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-shop-service/internal/auth"
	"github.com/spec-kit/repair-shop-service/internal/domain"
	"github.com/spec-kit/repair-shop-service/internal/observability"
	"github.com/spec-kit/repair-shop-service/internal/repository"
	"github.com/spec-kit/repair-shop-service/internal/service"
)

// ---- helpers ----

type testServer struct {
	app     *fiber.App
	repo    *repository.MemoryUserRepository
	metrics *observability.Metrics
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, mutate func(*RouteConfig)) *testServer {
	t.Helper()
	logger := zap.NewNop()
	repo := repository.NewMemoryUserRepository()
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 0)

	cfg := RouteConfig{
		APIPrefix: "/api",
		Health:    handlers.NewHealthHandler("repair-shop-service", "test", handlers.Dependency{Name: "store", Check: okPinger{}}),
		Metrics:   handlers.NewMetricsHandler(metrics),
		Users:     handlers.NewUsersHandler(service.NewUserService(service.UserDependencies{UserRepo: repo})),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	RegisterRoutes(app, cfg)
	return &testServer{app: app, repo: repo, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, url string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func scenarioUser() map[string]any {
	return map[string]any{
		"email":       "a@x.com",
		"password":    "p",
		"firstName":   "A",
		"lastName":    "B",
		"phoneNumber": "1",
		"address":     "x",
	}
}

func createUser(t *testing.T, s *testServer, body map[string]any) map[string]any {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, "/api/users", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func errorMessage(t *testing.T, data []byte) string {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	msg, ok := out["message"].(string)
	require.True(t, ok, string(data))
	return msg
}

// ---- scenarios ----

func TestCreateUserDefaults(t *testing.T) {
	s := newTestServer(t, nil)

	out := createUser(t, s, scenarioUser())

	assert.Equal(t, "standard", out["role"])
	assert.Equal(t, false, out["isDisabled"])
	id, _ := out["id"].(string)
	assert.True(t, domain.ValidUserID(id))
	assert.NotContains(t, out, "password")
}

func TestCreateUserBadRequest(t *testing.T) {
	s := newTestServer(t, nil)
	body := scenarioUser()
	delete(body, "address")

	resp, data := s.do(t, http.MethodPost, "/api/users", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request: address is required", errorMessage(t, data))

	resp, data = s.do(t, http.MethodPost, "/api/users", nil, "Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request: invalid payload", errorMessage(t, data))
}

func TestGetUserMalformedID(t *testing.T) {
	s := newTestServer(t, nil)

	resp, data := s.do(t, http.MethodGet, "/api/users/123", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request: invalid user id", errorMessage(t, data))

	resp, _ = s.do(t, http.MethodPut, "/api/users/123", map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/users/123", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDisableRetainsDocument(t *testing.T) {
	s := newTestServer(t, nil)
	id := createUser(t, s, scenarioUser())["id"].(string)

	resp, data := s.do(t, http.MethodDelete, "/api/users/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, data)

	resp, data = s.do(t, http.MethodGet, "/api/users/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, map[string]any{
		"id":        id,
		"firstName": "A",
		"lastName":  "B",
		"email":     "a@x.com",
		"role":      "standard",
	}, summary)

	stored, err := s.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, stored.IsDisabled)

	resp, _ = s.do(t, http.MethodDelete, "/api/users/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUpdateUnknownUser(t *testing.T) {
	s := newTestServer(t, nil)

	resp, data := s.do(t, http.MethodPut, "/api/users/"+domain.NewUserID(), map[string]any{"role": "admin", "isDisabled": false})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found: user not found", errorMessage(t, data))

	resp, _ = s.do(t, http.MethodGet, "/api/users/"+domain.NewUserID(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/users/"+domain.NewUserID(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/users/"+domain.NewUserID(), nil, "Content-Type", "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/users/"+domain.NewUserID(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t, nil)
	id := createUser(t, s, scenarioUser())["id"].(string)

	resp, _ := s.do(t, http.MethodPut, "/api/users/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data := s.do(t, http.MethodPut, "/api/users/"+id, map[string]any{"role": "admin", "isDisabled": true})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, data)

	stored, err := s.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, stored.Role)
	assert.True(t, stored.IsDisabled)

	resp, data = s.do(t, http.MethodPut, "/api/users/"+id, map[string]any{"firstName": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request: firstName must be a string", errorMessage(t, data))

	resp, data = s.do(t, http.MethodPut, "/api/users/"+id, map[string]any{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request: role must be one of [standard admin]", errorMessage(t, data))
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t, nil)

	resp, data := s.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	for _, email := range []string{"b@x.com", "a@x.com"} {
		body := scenarioUser()
		body["email"] = email
		createUser(t, s, body)
	}

	resp, data = s.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 2)
	assert.Less(t, list[0]["id"].(string), list[1]["id"].(string))
	for _, item := range list {
		assert.NotContains(t, item, "password")
		assert.NotContains(t, item, "address")
		assert.NotContains(t, item, "phoneNumber")
		assert.NotContains(t, item, "selectedSecurityQuestions")
	}
}

// ---- plumbing ----

func TestUnknownAPIRoute(t *testing.T) {
	s := newTestServer(t, nil)

	resp, data := s.do(t, http.MethodGet, "/api/tickets", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found: resource not found", errorMessage(t, data))

	resp, _ = s.do(t, http.MethodPatch, "/api/users/"+domain.NewUserID(), map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPanicBecomesInternalError(t *testing.T) {
	logger := zap.NewNop()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, nil, 0)
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error: internal server error", errorMessage(t, data))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	resp, _ := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.do(t, http.MethodGet, "/api/users/123", nil)
	resp, data := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap observability.MetricsSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, int64(1), snap.Errors["/api/users/:id|GET|ValidationError"])
	assert.NotContains(t, snap.Errors, "/api/users/123|GET|ValidationError")
}

func TestReadyReportsDownDependency(t *testing.T) {
	s := newTestServer(t, func(cfg *RouteConfig) {
		cfg.Health = handlers.NewHealthHandler("svc", "test", handlers.Dependency{Name: "redis", Check: downPinger{}})
	})

	resp, data := s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(data), "connection refused")
}

func TestAdminGate(t *testing.T) {
	tokens := auth.NewTokenManager("secret", 5)
	s := newTestServer(t, func(cfg *RouteConfig) {
		cfg.AuthMiddleware = auth.NewAuthMiddleware(tokens)
	})
	admin, _, err := tokens.GenerateToken("op-1", domain.RoleAdmin)
	require.NoError(t, err)
	standard, _, err := tokens.GenerateToken("op-2", domain.RoleStandard)
	require.NoError(t, err)

	resp, data := s.do(t, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized: missing authorization header", errorMessage(t, data))

	resp, _ = s.do(t, http.MethodGet, "/api/users", nil, "Authorization", "Bearer "+standard)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/users", scenarioUser(), "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestStaticClientFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<app-root></app-root>"), 0o600))
	s := newTestServer(t, func(cfg *RouteConfig) {
		cfg.StaticDir = dir
	})

	resp, data := s.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "app-root")

	resp, _ = s.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
