package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/models"
)

// SubscriptionService is the read side of subscription state; writes
// come exclusively from the billing webhook.
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

func (s *SubscriptionService) Status(userID int64) (*dto.SubscriptionStatusResponse, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	resp := dto.SubscriptionStatusResponse{
		IsVip:         user.IsVip,
		VipExpireTime: user.VipExpireTime,
	}
	if user.VipType != nil {
		v := string(*user.VipType)
		resp.VipType = &v
	}

	var sub models.Subscription
	err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&sub).Error
	if err == nil {
		resp.WillRenew = sub.WillRenew
		resp.ProductID = &sub.ProductID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &resp, nil
}
