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

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var userRepo repository.UserRepository
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	if redis.Available() {
		userRepo = repository.NewCachedUserRepository(userRepo, redis.Client, cfg.Redis.UserCacheTTL(), logger)
	}

	metrics := observability.NewMetrics()
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		Users:  userRepo,
		Hasher: hasher,
		Events: dispatcher,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	userService := service.NewUserService(service.UserDependencies{
		Users:  userRepo,
		Hasher: hasher,
		Events: dispatcher,
		Logger: logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), cfg.Auth.HeaderName, logger, metrics)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), authMiddleware)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:   handlers.NewAuthHandler(authService),
		Users:  handlers.NewUsersHandler(userService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("auth service started",
		zap.String("addr", cfg.App.Addr()),
		zap.Duration("token_ttl", authService.TokenManager().TTL()))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
