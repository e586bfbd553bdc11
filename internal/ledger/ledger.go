// Package ledger is the sole writer of point balances. Every balance
// mutation locks the user's balance row, checks the non-negative
// invariant, and appends an immutable PointTransaction whose
// balance_after snapshots the committed balance, all inside the
// caller's transaction, so a violation rolls the whole unit back.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pickitchen/pickitchen-backend/internal/database"
	"github.com/pickitchen/pickitchen-backend/internal/models"
)

var (
	// ErrInsufficientPoints means the mutation would drive the balance
	// below zero; nothing was written.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrAlreadyRewarded means a reward for this (user, week) was
	// already granted; the duplicate grant was rejected by the partial
	// unique index and nothing was written.
	ErrAlreadyRewarded = errors.New("reward already granted for this week")
)

// Correlation tags a transaction with what caused it. Zero-value fields
// are stored as NULL.
type Correlation struct {
	TaskType   string
	OrderNo    string
	RewardWeek string
}

// GetOrCreateBalance returns the user's balance row, creating it at
// zero on first access. Safe under concurrent first access: a losing
// insert falls back to reading the winner's row.
func GetOrCreateBalance(db *gorm.DB, userID int64) (*models.UserPoints, error) {
	var points models.UserPoints
	err := db.Where("user_id = ?", userID).First(&points).Error
	if err == nil {
		return &points, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	points = models.UserPoints{UserID: userID, Balance: 0, UpdatedAt: time.Now().UTC()}
	if err := db.Create(&points).Error; err != nil {
		if database.IsUniqueViolation(err) {
			if err := db.Where("user_id = ?", userID).First(&points).Error; err != nil {
				return nil, fmt.Errorf("failed to load balance after create race: %w", err)
			}
			return &points, nil
		}
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}
	return &points, nil
}

// ChangeBalance applies delta to the user's balance and records the
// transaction. Must be called inside a database transaction; the
// row-level lock it takes is held until that transaction ends, which is
// what serializes concurrent mutations per user.
func ChangeBalance(tx *gorm.DB, userID int64, delta int64, txType models.PointTransactionType, corr Correlation) (*models.UserPoints, error) {
	var points models.UserPoints
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&points).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		points = models.UserPoints{UserID: userID, Balance: 0, UpdatedAt: time.Now().UTC()}
		if err := tx.Create(&points).Error; err != nil {
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}

	newBalance := points.Balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientPoints
	}

	now := time.Now().UTC()
	if err := tx.Model(&models.UserPoints{}).
		Where("id = ?", points.ID).
		Updates(map[string]interface{}{"balance": newBalance, "updated_at": now}).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	record := models.PointTransaction{
		UserID:       userID,
		Type:         txType,
		Amount:       delta,
		BalanceAfter: newBalance,
		TaskType:     nullable(corr.TaskType),
		OrderNo:      nullable(corr.OrderNo),
		RewardWeek:   nullable(corr.RewardWeek),
	}
	if err := tx.Create(&record).Error; err != nil {
		if corr.RewardWeek != "" && database.IsUniqueViolation(err) {
			return nil, ErrAlreadyRewarded
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	points.Balance = newBalance
	points.UpdatedAt = now
	return &points, nil
}

// History returns the user's transactions newest first, with the total
// row count for pagination.
func History(db *gorm.DB, userID int64, offset, limit int) ([]models.PointTransaction, int64, error) {
	var total int64
	if err := db.Model(&models.PointTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []models.PointTransaction
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
