package dto

import "time"

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type PointTransactionResponse struct {
	ID           int64     `json:"id,string"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	TaskType     *string   `json:"task_type,omitempty"`
	OrderNo      *string   `json:"order_no,omitempty"`
	RewardWeek   *string   `json:"reward_week,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PointHistoryResponse struct {
	Items  []PointTransactionResponse `json:"items"`
	Total  int64                      `json:"total"`
	Offset int                        `json:"offset"`
	Limit  int                        `json:"limit"`
}
