package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/database"
	"github.com/pickitchen/pickitchen-backend/internal/handlers"
	"github.com/pickitchen/pickitchen-backend/internal/logging"
	"github.com/pickitchen/pickitchen-backend/internal/middleware"
	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/queue"
	"github.com/pickitchen/pickitchen-backend/internal/routes"
	"github.com/pickitchen/pickitchen-backend/internal/services"
	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
	"github.com/pickitchen/pickitchen-backend/internal/storage"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNodeID)
	if err != nil {
		slog.Error("invalid snowflake node id", "node_id", cfg.SnowflakeNodeID, "error", err)
		os.Exit(1)
	}
	snowflake.SetDefault(node)

	// Catalog
	cat, err := catalog.LoadFromFile(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	// Database
	db, err := database.WaitReady(cfg, 10, 2*time.Second)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Redis (queue + distributed lock)
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cleanupDone)

	// Remote pipeline + object storage
	pipeline, err := provider.New(cfg.EmojiMock, cfg.DashScopeBaseURL, cfg.DashScopeAPIKey)
	if err != nil {
		slog.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}
	uploader, err := storage.NewOSS(cfg)
	if err != nil {
		slog.Error("object storage init failed", "error", err)
		os.Exit(1)
	}
	producer := queue.NewProducer(rdb, cfg.EmojiStream)

	// Services
	authService := services.NewAuthService(db, cfg)
	billingService := services.NewBillingService(db, cat)
	orderService := services.NewOrderService(db, cat)
	subscriptionService := services.NewSubscriptionService(db)
	emojiService := services.NewEmojiService(db, cfg, cat, pipeline, uploader, producer)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	pointsHandler := handlers.NewPointsHandler(db)
	orderHandler := handlers.NewOrderHandler(orderService)
	emojiHandler := handlers.NewEmojiHandler(emojiService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	webhookHandler := handlers.NewWebhookHandler(billingService, cfg.RevenueCatWebhookAuth)
	configHandler := handlers.NewConfigHandler(cat)
	healthHandler := handlers.NewHealthHandler(db, rdb)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    8 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg,
		authHandler, pointsHandler, orderHandler, emojiHandler,
		subscriptionHandler, webhookHandler, configHandler, healthHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
