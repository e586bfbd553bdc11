package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

type RefreshToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID    int64     `gorm:"not null;index" json:"user_id,string"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"not null" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if r.ID == 0 {
		r.ID = snowflake.Generate()
	}
	return nil
}
