package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/ledger"
	"github.com/pickitchen/pickitchen-backend/internal/middleware"
)

type PointsHandler struct {
	db *gorm.DB
}

func NewPointsHandler(db *gorm.DB) *PointsHandler {
	return &PointsHandler{db: db}
}

func (h *PointsHandler) Balance(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	balance, err := ledger.GetOrCreateBalance(h.db, userID)
	if err != nil {
		return internalError(c)
	}

	return c.JSON(dto.BalanceResponse{Balance: balance.Balance})
}

func (h *PointsHandler) History(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)

	txs, total, err := ledger.History(h.db, userID, offset, limit)
	if err != nil {
		return internalError(c)
	}

	items := make([]dto.PointTransactionResponse, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		items = append(items, dto.PointTransactionResponse{
			ID:           tx.ID,
			Type:         string(tx.Type),
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			TaskType:     tx.TaskType,
			OrderNo:      tx.OrderNo,
			RewardWeek:   tx.RewardWeek,
			CreatedAt:    tx.CreatedAt,
		})
	}

	return c.JSON(dto.PointHistoryResponse{Items: items, Total: total, Offset: offset, Limit: limit})
}
