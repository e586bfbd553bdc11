package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// User is a device-based account. There is no password credential; the
// device ID is the identity and users are created lazily on first login.
type User struct {
	ID            int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	DeviceID      string     `gorm:"size:128;not null;uniqueIndex" json:"device_id"`
	Nickname      *string    `gorm:"size:64" json:"nickname"`
	IsVip         bool       `gorm:"not null" json:"is_vip"`
	VipType       *VipType   `gorm:"size:16" json:"vip_type"`
	VipExpireTime *time.Time `json:"vip_expire_time"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == 0 {
		u.ID = snowflake.Generate()
	}
	return nil
}
