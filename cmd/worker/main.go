package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/database"
	"github.com/pickitchen/pickitchen-backend/internal/logging"
	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/queue"
	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
	"github.com/pickitchen/pickitchen-backend/internal/storage"
	"github.com/pickitchen/pickitchen-backend/internal/worker"
)

func main() {
	logging.Setup()

	cfg := config.Load()

	node, err := snowflake.NewNode(cfg.SnowflakeNodeID)
	if err != nil {
		slog.Error("invalid snowflake node id", "node_id", cfg.SnowflakeNodeID, "error", err)
		os.Exit(1)
	}
	snowflake.SetDefault(node)

	db, err := database.WaitReady(cfg, 10, 2*time.Second)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

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

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	consumer := queue.NewConsumer(rdb, queue.ConsumerOptions{
		Stream:       cfg.EmojiStream,
		Group:        cfg.EmojiGroup,
		Consumer:     cfg.EmojiConsumer,
		ClaimMinIdle: cfg.EmojiClaimMinIdle,
	})

	w := worker.New(consumer, worker.NewTaskStore(db), pipeline, uploader, worker.Options{
		PollInterval: cfg.EmojiPollInterval,
		PollTimeout:  cfg.EmojiPollTimeout,
		ResultPrefix: cfg.OSSResultPrefix,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("worker stopped")
}
