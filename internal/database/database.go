package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/models"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return db, nil
}

// WaitReady pings the database with a fixed backoff until it answers or
// the attempts run out. Startup ordering in container deployments is
// not guaranteed, so every process calls this before serving.
func WaitReady(cfg *config.Config, attempts int, backoff time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := Connect(cfg)
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil {
				if perr := sqlDB.Ping(); perr == nil {
					return db, nil
				} else {
					err = perr
				}
			} else {
				err = derr
			}
		}
		lastErr = err
		slog.Warn("database not ready", "attempt", i+1, "error", err)
		time.Sleep(backoff)
	}
	return nil, fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.UserPoints{},
		&models.PointTransaction{},
		&models.Order{},
		&models.Subscription{},
		&models.RevenueCatEvent{},
		&models.EmojiTask{},
		&models.SystemLog{},
	)
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
