package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/ledger"
	"github.com/pickitchen/pickitchen-backend/internal/models"
)

const (
	rewardLockKey = "points:weekly_reward:lock"
	rewardLockTTL = 30 * time.Minute
)

// ErrRewardRunning reports that another scheduler instance holds the
// weekly reward lock.
var ErrRewardRunning = errors.New("weekly reward run already in progress")

// RewardLocker is the distributed lock the scheduler serializes on.
type RewardLocker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// RewardStats summarizes one scheduler run.
type RewardStats struct {
	Week     string
	Eligible int
	Granted  int
	Skipped  int
	Failed   int
}

// RewardService grants the weekly VIP points reward exactly once per
// user per ISO week. The Redis lock keeps concurrent runs out of each
// other's way; the ledger's unique (user, week) constraint is what
// actually prevents a double grant.
type RewardService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	locker  RewardLocker
	now     func() time.Time
}

func NewRewardService(db *gorm.DB, cat *catalog.Catalog, locker RewardLocker) *RewardService {
	return &RewardService{db: db, catalog: cat, locker: locker, now: time.Now}
}

// RewardWeek formats t's ISO year and week as the grant key, e.g.
// "2024-W05".
func RewardWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Run executes one reward pass for the current week.
func (s *RewardService) Run(ctx context.Context) (*RewardStats, error) {
	week := RewardWeek(s.now())
	token := uuid.NewString()

	ok, err := s.locker.Acquire(ctx, rewardLockKey, token, rewardLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire reward lock: %w", err)
	}
	if !ok {
		return nil, ErrRewardRunning
	}
	defer func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), rewardLockKey, token); err != nil {
			slog.Error("release reward lock failed", "error", err)
		}
	}()

	var subs []models.Subscription
	if err := s.db.Where("status IN ?", []models.SubscriptionStatus{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusCancelled,
	}).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	stats := &RewardStats{Week: week}
	now := s.now()
	seen := make(map[int64]bool, len(subs))
	for i := range subs {
		sub := &subs[i]
		if seen[sub.UserID] {
			continue
		}
		if sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now) {
			continue
		}
		seen[sub.UserID] = true
		stats.Eligible++

		amount := s.catalog.WeeklyRewardAmount(sub.PlanType)
		err := s.db.Transaction(func(tx *gorm.DB) error {
			_, err := ledger.ChangeBalance(tx, sub.UserID, amount, models.PointTransactionReward, ledger.Correlation{
				RewardWeek: week,
			})
			return err
		})
		switch {
		case errors.Is(err, ledger.ErrAlreadyRewarded):
			stats.Skipped++
		case err != nil:
			stats.Failed++
			slog.Error("weekly reward grant failed",
				"user_id", sub.UserID, "week", week, "error", err)
		default:
			stats.Granted++
		}
	}

	slog.Info("weekly reward run finished",
		"week", week,
		"eligible", stats.Eligible,
		"granted", stats.Granted,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return stats, nil
}
