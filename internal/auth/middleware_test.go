package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-shop-service/internal/domain"
)

func newGatedApp(tm *TokenManager) *fiber.App {
	app := fiber.New()
	app.Get("/admin", NewAuthMiddleware(tm).Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		caller, ok := domain.CallerFromContext(c.UserContext())
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(caller.ID)
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthMiddlewareStatuses(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newGatedApp(tm)
	admin, _, err := tm.GenerateToken("op-1", domain.RoleAdmin)
	require.NoError(t, err)
	standard, _, err := tm.GenerateToken("op-2", domain.RoleStandard)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "Basic abc").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "Bearer garbage").StatusCode)
	assert.Equal(t, http.StatusForbidden, doGet(t, app, "Bearer "+standard).StatusCode)
	assert.Equal(t, http.StatusOK, doGet(t, app, "Bearer "+admin).StatusCode)
}

func TestRequireRoleWithoutCaller(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
