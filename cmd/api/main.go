package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/api/handlers"
	"github.com/fakenews-detector/backend/internal/artifact"
	redisCache "github.com/fakenews-detector/backend/internal/cache/redis"
	"github.com/fakenews-detector/backend/internal/inference"
	"github.com/fakenews-detector/backend/internal/metrics"
	"github.com/fakenews-detector/backend/internal/middleware/ratelimit"
	"github.com/fakenews-detector/backend/internal/middleware/security"
	"github.com/fakenews-detector/backend/internal/middleware/validation"
	"github.com/fakenews-detector/backend/internal/storage/sqlite"
	"github.com/fakenews-detector/backend/pkg/config"
	appLogger "github.com/fakenews-detector/backend/pkg/logger"
	"github.com/fakenews-detector/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting fake news classifier API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	model, err := inference.Load(artifact.NewFileStore(), cfg.Artifacts.ExtractorPath, cfg.Artifacts.ModelPath)
	if err != nil {
		appLogger.Fatal("Failed to load model artifacts, run the trainer first", zap.Error(err))
	}

	manifest, err := artifact.ReadManifest(cfg.Artifacts.ManifestPath)
	if err != nil {
		appLogger.Warn("Model manifest unavailable", zap.Error(err))
	} else {
		model.Manifest = manifest
	}

	appLogger.Info("Model loaded",
		zap.String("version", model.Version()),
		zap.String("family", model.Model.Family),
		zap.Float64("accuracy", model.Model.Accuracy),
	)

	healthHandler := handlers.NewHealthHandler(model).Require("sqlite", sqliteClient)

	var serviceOpts []inference.ServiceOption
	if cfg.Redis.Enabled {
		cache, err := connectRedis(cfg)
		if err != nil {
			appLogger.Warn("Redis unavailable, serving without prediction cache", zap.Error(err))
		} else {
			defer cache.Close()
			syncCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := cache.SyncModelVersion(syncCtx, model.Version()); err != nil {
				appLogger.Warn("Failed to drop predictions of the previous model", zap.Error(err))
			}
			cancel()
			serviceOpts = append(serviceOpts, inference.WithCache(cache, time.Duration(cfg.Redis.TTLSec)*time.Second))
			healthHandler.Require("redis", cache)
		}
	}

	service := inference.NewService(model, serviceOpts...)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	predictHandler := handlers.NewPredictHandler(service, sqliteClient)
	modelHandler := handlers.NewModelHandler(model, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(service, sqliteClient, cfg.Validation.MaxTextLength)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Post("/predict",
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			MaxTextLength: cfg.Validation.MaxTextLength,
			MaxBatchSize:  cfg.Validation.MaxBatchSize,
			Logger:        appLogger.GetLogger(),
		}),
		predictHandler.HandlePredict,
	)

	api.Get("/model", modelHandler.GetModel)
	api.Get("/runs", modelHandler.ListRuns)
	api.Get("/runs/:id", modelHandler.GetRun)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/predict", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func connectRedis(cfg *config.Config) (*redisCache.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	retryCfg.InitialDelay = 500 * time.Millisecond
	retryCfg.Logger = appLogger.GetLogger()
	retryCfg.Name = "redis"

	return retry.DoWithResult(ctx, retryCfg, func() (*redisCache.Client, error) {
		return redisCache.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	})
}
