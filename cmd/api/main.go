package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-shop-service/internal/api/http"
	"github.com/spec-kit/repair-shop-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-shop-service/internal/auth"
	"github.com/spec-kit/repair-shop-service/internal/cache"
	"github.com/spec-kit/repair-shop-service/internal/config"
	"github.com/spec-kit/repair-shop-service/internal/domain"
	"github.com/spec-kit/repair-shop-service/internal/events"
	"github.com/spec-kit/repair-shop-service/internal/observability"
	"github.com/spec-kit/repair-shop-service/internal/persistence"
	"github.com/spec-kit/repair-shop-service/internal/repository"
	"github.com/spec-kit/repair-shop-service/internal/service"
	"github.com/spec-kit/repair-shop-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openUserStore(ctx, cfg, logger)
	defer store.close()

	var healthDeps []handlers.Dependency
	if store.pinger != nil {
		healthDeps = append(healthDeps, handlers.Dependency{Name: store.driver, Check: store.pinger})
	}

	userDeps := service.UserDependencies{UserRepo: store.users, Logger: logger}
	redis := persistence.NewRedis(cfg.Redis, logger)
	if redis != nil {
		defer redis.Close()
		userDeps.Cache = cache.NewViewCache[domain.UserSummary](redis.Client, "user-summary", cfg.Redis.TTL(), logger)
		healthDeps = append(healthDeps, handlers.Dependency{Name: "redis", Check: redis})
	}

	dispatcher := events.NewInMemoryDispatcher()
	userDeps.Dispatcher = dispatcher
	auditService := service.NewAuditService(dispatcher, logger, cfg.Audit)
	worker.StartAuditWorker(ctx, auditService)

	userService := service.NewUserService(userDeps)
	metrics := observability.NewMetrics()

	var authMiddleware *auth.AuthMiddleware
	if cfg.Auth.Enabled {
		authMiddleware = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes))
		logger.Info("user routes restricted to admin role")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		APIPrefix:      cfg.App.APIPrefix,
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps...),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		StaticDir:      cfg.Static.Dir,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

type userStore struct {
	driver string
	users  repository.UserRepository
	pinger handlers.Pinger
	close  func()
}

// openUserStore connects the configured store. A mongo driver without a URI
// falls back to the in-memory store so the service still boots locally.
func openUserStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) userStore {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		m, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		if !m.Connected() {
			break
		}
		if cfg.Mongo.EnsureIndexes {
			if err := repository.EnsureUserIndexes(ctx, m.Users()); err != nil {
				logger.Fatal("failed to ensure user indexes", zap.Error(err))
			}
		}
		return userStore{
			driver: config.StoreDriverMongo,
			users:  repository.NewMongoUserRepository(m.Users()),
			pinger: m,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				m.Close(closeCtx)
			},
		}
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if pg.PoolHandle() == nil {
			logger.Fatal("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return userStore{
			driver: config.StoreDriverPostgres,
			users:  repository.NewPostgresUserRepository(pg.PoolHandle()),
			pinger: pg,
			close:  pg.Close,
		}
	}

	logger.Warn("using in-memory user store; data is lost on restart")
	return userStore{
		driver: config.StoreDriverMemory,
		users:  repository.NewMemoryUserRepository(),
		close:  func() {},
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
