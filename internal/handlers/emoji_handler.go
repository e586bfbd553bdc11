package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/ledger"
	"github.com/pickitchen/pickitchen-backend/internal/middleware"
	"github.com/pickitchen/pickitchen-backend/internal/services"
)

type EmojiHandler struct {
	emojiService *services.EmojiService
}

func NewEmojiHandler(emojiService *services.EmojiService) *EmojiHandler {
	return &EmojiHandler{emojiService: emojiService}
}

func (h *EmojiHandler) Upload(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return internalError(c)
	}
	defer file.Close()

	resp, err := h.emojiService.Upload(c.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *EmojiHandler) Detect(c *fiber.Ctx) error {
	if _, err := middleware.UserID(c); err != nil {
		return unauthorized(c)
	}

	var req dto.DetectRequest
	if err := c.BodyParser(&req); err != nil || req.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "image_url is required",
		})
	}

	result, err := h.emojiService.Detect(c.Context(), req.ImageURL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: "Face detection failed",
		})
	}

	return c.JSON(dto.DetectResponse{
		Passed:       result.Passed,
		ErrorCode:    result.ErrorCode,
		ErrorMessage: result.ErrorMessage,
	})
}

func (h *EmojiHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateEmojiTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, err := h.emojiService.CreateTask(c.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientPoints):
			return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{
				Error: true, Message: "Insufficient points",
			})
		case errors.Is(err, services.ErrUnknownStyle):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Unknown style",
			})
		case errors.Is(err, services.ErrFaceNotDetected):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
				Error: true, Message: "No usable face detected",
			})
		default:
			return internalError(c)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *EmojiHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	taskID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid task id",
		})
	}

	resp, err := h.emojiService.GetTask(userID, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Task not found",
			})
		}
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *EmojiHandler) History(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.emojiService.History(userID, c.QueryInt("offset", 0), c.QueryInt("limit", 20))
	if err != nil {
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *EmojiHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	taskID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid task id",
		})
	}

	if err := h.emojiService.Delete(userID, taskID); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Task not found",
			})
		}
		return internalError(c)
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}
