package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/database"
	"github.com/pickitchen/pickitchen-backend/internal/lock"
	"github.com/pickitchen/pickitchen-backend/internal/logging"
	"github.com/pickitchen/pickitchen-backend/internal/services"
	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

func main() {
	once := flag.Bool("once", false, "run a single reward pass and exit")
	flag.Parse()

	logging.Setup()

	cfg := config.Load()

	node, err := snowflake.NewNode(cfg.SnowflakeNodeID)
	if err != nil {
		slog.Error("invalid snowflake node id", "node_id", cfg.SnowflakeNodeID, "error", err)
		os.Exit(1)
	}
	snowflake.SetDefault(node)

	cat, err := catalog.LoadFromFile(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

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

	rewardService := services.NewRewardService(db, cat, lock.New(rdb))

	run := func() {
		stats, err := rewardService.Run(context.Background())
		if errors.Is(err, services.ErrRewardRunning) {
			slog.Info("reward run skipped, another instance holds the lock")
			return
		}
		if err != nil {
			slog.Error("reward run failed", "error", err)
			return
		}
		slog.Info("reward run done",
			"week", stats.Week, "granted", stats.Granted, "skipped", stats.Skipped)
	}

	if *once {
		run()
		return
	}

	// Every Monday 00:00 UTC, the start of the ISO week.
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("0 0 * * 1", run); err != nil {
		slog.Error("invalid cron spec", "error", err)
		os.Exit(1)
	}
	c.Start()
	slog.Info("reward scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-c.Stop().Done()
	slog.Info("reward scheduler stopped")
}
