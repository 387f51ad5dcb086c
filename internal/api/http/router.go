package http

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-shop-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-shop-service/internal/auth"
	"github.com/spec-kit/repair-shop-service/internal/domain"
	apperrors "github.com/spec-kit/repair-shop-service/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	APIPrefix string
	Health    *handlers.HealthHandler
	Metrics   *handlers.MetricsHandler
	Users     *handlers.UsersHandler
	// AuthMiddleware gates the user routes to admins; nil leaves them open.
	AuthMiddleware *auth.AuthMiddleware
	// StaticDir holds the compiled browser client; ignored when missing.
	StaticDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Snapshot)
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	api := app.Group(prefix)

	var users fiber.Router
	if cfg.AuthMiddleware != nil {
		users = api.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	} else {
		users = api.Group("/users")
	}
	users.Post("", cfg.Users.Create)
	users.Get("", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Disable)

	if prefix != "" {
		api.Use(notFound)
	}

	if index := filepath.Join(cfg.StaticDir, "index.html"); cfg.StaticDir != "" && fileExists(index) {
		app.Static("/", cfg.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			return c.SendFile(index)
		})
	}
	app.Use(notFound)
}

func notFound(*fiber.Ctx) error {
	return apperrors.NewNotFound("resource")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
