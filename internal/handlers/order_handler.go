package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/middleware"
	"github.com/pickitchen/pickitchen-backend/internal/services"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "product_id is required",
		})
	}

	resp, err := h.orderService.Create(userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUnknownProduct) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Unknown product",
			})
		}
		return internalError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	orderNo := c.Params("order_no")
	resp, err := h.orderService.Get(userID, orderNo)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Order not found",
			})
		}
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.orderService.List(userID, c.QueryInt("offset", 0), c.QueryInt("limit", 20))
	if err != nil {
		return internalError(c)
	}

	return c.JSON(resp)
}
