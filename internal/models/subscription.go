package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// Subscription is one row per (user, product). Status transitions are
// driven exclusively by billing webhook events, never by the user.
type Subscription struct {
	ID                 int64              `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID             int64              `gorm:"not null;index:idx_subscriptions_user_product,unique" json:"user_id,string"`
	ProductID          string             `gorm:"size:128;not null;index:idx_subscriptions_user_product,unique" json:"product_id"`
	PlanType           VipType            `gorm:"size:16;not null" json:"plan_type"`
	Status             SubscriptionStatus `gorm:"size:16;not null" json:"status"`
	WillRenew          bool               `gorm:"not null" json:"will_renew"`
	CurrentPeriodStart *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(_ *gorm.DB) error {
	if s.ID == 0 {
		s.ID = snowflake.Generate()
	}
	return nil
}
