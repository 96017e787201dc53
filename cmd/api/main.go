package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/fieldline/webhook-engine/internal/config"
	"github.com/fieldline/webhook-engine/internal/handler"
	"github.com/fieldline/webhook-engine/internal/infra/postgresql"
	"github.com/fieldline/webhook-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/fieldline/webhook-engine/internal/infra/redis"
	"github.com/fieldline/webhook-engine/internal/observability"
	"github.com/fieldline/webhook-engine/internal/repository"
	"github.com/fieldline/webhook-engine/internal/sender"
	"github.com/fieldline/webhook-engine/internal/service"
	"github.com/fieldline/webhook-engine/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.DeliveryRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	subscriptionRepo := repository.NewGormSubscriptionRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)

	metrics := observability.NewMetrics()

	worker, err := service.NewDeliveryWorker(deliveryRepo, sender.NewHTTPSender(), rateLimiter, logger)
	if err != nil {
		logger.Fatal("delivery worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(subscriptionRepo, worker, cfg.DispatcherConcurrency, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	registry, err := service.NewSubscriptionService(subscriptionRepo, deliveryRepo, logger)
	if err != nil {
		logger.Fatal("subscription service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterSubscriptionRoutes(app, registry, dispatcher); err != nil {
		logger.Fatal("failed to register subscription routes", zap.Error(err))
	}
	if err := handler.RegisterEventRoutes(app, dispatcher); err != nil {
		logger.Fatal("failed to register event routes", zap.Error(err))
	}

	go func() {
		logger.Info("webhook-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("api server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Drain in-flight delivery tasks. Tasks parked in a retry wait are
	// waited for too; only a hard kill loses them.
	dispatcher.Close()
	logger.Info("shutdown complete")
}
