package dto

import (
	"time"

	"github.com/pickitchen/pickitchen-backend/internal/provider"
)

type DetectRequest struct {
	ImageURL string `json:"image_url"`
}

type DetectResponse struct {
	Passed       bool   `json:"passed"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type CreateEmojiTaskRequest struct {
	ImageURL string `json:"image_url"`
	DrivenID string `json:"driven_id"`

	// Optional detection carried over from a prior /detect call. When
	// absent the service runs detection itself before charging.
	Detect *provider.DetectResult `json:"detect,omitempty"`
}

type EmojiTaskResponse struct {
	ID           int64      `json:"id,string"`
	Status       string     `json:"status"`
	TaskType     string     `json:"task_type"`
	DrivenID     string     `json:"driven_id"`
	StyleName    *string    `json:"style_name,omitempty"`
	PointsCost   int64      `json:"points_cost"`
	ResultURL    *string    `json:"result_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type EmojiHistoryResponse struct {
	Items  []EmojiTaskResponse `json:"items"`
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

type UploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}
