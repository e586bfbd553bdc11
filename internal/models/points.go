package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// UserPoints holds the current spendable balance, exactly one row per
// user. The balance is never negative; every mutation goes through the
// ledger package, which locks this row for the transaction's duration.
type UserPoints struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID    int64     `gorm:"not null;uniqueIndex" json:"user_id,string"`
	Balance   int64     `gorm:"not null" json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *UserPoints) BeforeCreate(_ *gorm.DB) error {
	if p.ID == 0 {
		p.ID = snowflake.Generate()
	}
	return nil
}

// PointTransaction is the append-only balance history. Rows are written
// once per ledger mutation and never updated or deleted; BalanceAfter
// snapshots the balance the mutation committed.
//
// The partial unique index on (user_id, reward_week) makes a second
// weekly grant for the same user and week fail at the database, which
// is what the reward scheduler relies on for exactly-once grants.
type PointTransaction struct {
	ID           int64                `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID       int64                `gorm:"not null;index;uniqueIndex:idx_user_reward_week,where:reward_week IS NOT NULL" json:"user_id,string"`
	Type         PointTransactionType `gorm:"size:16;not null" json:"type"`
	Amount       int64                `gorm:"not null" json:"amount"`
	BalanceAfter int64                `gorm:"not null" json:"balance_after"`
	TaskType     *string              `gorm:"size:32" json:"task_type,omitempty"`
	OrderNo      *string              `gorm:"size:64" json:"order_no,omitempty"`
	RewardWeek   *string              `gorm:"size:8;uniqueIndex:idx_user_reward_week,where:reward_week IS NOT NULL" json:"reward_week,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

func (t *PointTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == 0 {
		t.ID = snowflake.Generate()
	}
	return nil
}
