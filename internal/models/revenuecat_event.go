package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// RevenueCatEvent is the write-once log of billing webhook events. The
// unique event_id index is the idempotency boundary: a violation on
// insert means the event was already processed and the whole delivery
// is discarded as a duplicate.
type RevenueCatEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	EventID   string         `gorm:"size:64;not null;uniqueIndex" json:"event_id"`
	EventType string         `gorm:"size:64;not null" json:"event_type"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (e *RevenueCatEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == 0 {
		e.ID = snowflake.Generate()
	}
	return nil
}
