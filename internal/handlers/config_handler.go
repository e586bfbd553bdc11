package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
)

type ConfigHandler struct {
	catalog *catalog.Catalog
}

func NewConfigHandler(cat *catalog.Catalog) *ConfigHandler {
	return &ConfigHandler{catalog: cat}
}

// Get returns the client-facing catalog: styles, banners and pricing
// rules. No auth; the app fetches it before login.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"styles":       h.catalog.Styles(),
		"banners":      h.catalog.Banners(),
		"points_rules": h.catalog.PointsRules(),
	})
}
