package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/services"
)

type WebhookHandler struct {
	billingService *services.BillingService
	webhookAuth    string
}

func NewWebhookHandler(billingService *services.BillingService, webhookAuth string) *WebhookHandler {
	return &WebhookHandler{
		billingService: billingService,
		webhookAuth:    webhookAuth,
	}
}

// HandleRevenueCat ingests a billing event. The shared secret is
// accepted bare or with a Bearer prefix; comparison is constant time.
func (h *WebhookHandler) HandleRevenueCat(c *fiber.Ctx) error {
	if h.webhookAuth == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured",
		})
	}

	authHeader := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(authHeader), []byte(h.webhookAuth)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var webhook dto.RevenueCatWebhook
	if err := c.BodyParser(&webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}

	result, err := h.billingService.ProcessEvent(&webhook.Event)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEvent) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid event",
			})
		}
		slog.Error("webhook processing failed",
			"event_id", webhook.Event.ID, "event_type", webhook.Event.Type, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("webhook processed",
		"event_id", webhook.Event.ID, "event_type", webhook.Event.Type, "result", string(result))
	return c.JSON(fiber.Map{"received": true, "result": string(result)})
}
