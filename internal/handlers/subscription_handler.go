package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pickitchen/pickitchen-backend/internal/middleware"
	"github.com/pickitchen/pickitchen-backend/internal/services"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandler) Status(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.subscriptionService.Status(userID)
	if err != nil {
		return internalError(c)
	}

	return c.JSON(resp)
}
