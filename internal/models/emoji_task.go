package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// EmojiTask is a unit of asynchronous generation work. The API creates
// it with the points already debited; only the worker mutates it after
// that (user-initiated deletion aside). PointsCost records what was
// charged at creation; a failed task does not refund it.
type EmojiTask struct {
	ID             int64                                     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID         int64                                     `gorm:"not null;index" json:"user_id,string"`
	TaskType       string                                    `gorm:"size:32;not null" json:"task_type"`
	Status         EmojiTaskStatus                           `gorm:"size:16;not null;index" json:"status"`
	SourceImageURL string                                    `gorm:"size:512;not null" json:"source_image_url"`
	DrivenID       string                                    `gorm:"size:64;not null" json:"driven_id"`
	StyleName      *string                                   `gorm:"size:64" json:"style_name,omitempty"`
	DetectResult   datatypes.JSONType[provider.DetectResult] `json:"detect_result"`
	PointsCost     int64                                     `gorm:"not null" json:"points_cost"`
	AliyunTaskID   *string                                   `gorm:"size:128" json:"-"`
	ResultURL      *string                                   `gorm:"size:512" json:"result_url,omitempty"`
	ErrorMessage   *string                                   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time                                 `json:"created_at"`
	UpdatedAt      time.Time                                 `json:"updated_at"`
	CompletedAt    *time.Time                                `json:"completed_at,omitempty"`
}

func (t *EmojiTask) BeforeCreate(_ *gorm.DB) error {
	if t.ID == 0 {
		t.ID = snowflake.Generate()
	}
	return nil
}
