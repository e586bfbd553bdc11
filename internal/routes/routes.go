package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/handlers"
	"github.com/pickitchen/pickitchen-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	pointsHandler *handlers.PointsHandler,
	orderHandler *handlers.OrderHandler,
	emojiHandler *handlers.EmojiHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	webhookHandler *handlers.WebhookHandler,
	configHandler *handlers.ConfigHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api/v1")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Public
	api.Get("/health", healthHandler.Check)
	api.Get("/config", configHandler.Get)

	// Auth gets a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)

	// Protected routes (JWT required)
	jwt := middleware.JWTProtected(cfg)

	user := api.Group("/user", jwt)
	user.Get("/profile", authHandler.Profile)
	user.Put("/profile", authHandler.UpdateProfile)

	points := api.Group("/points", jwt)
	points.Get("/balance", pointsHandler.Balance)
	points.Get("/history", pointsHandler.History)

	order := api.Group("/order", jwt)
	order.Post("/create", orderHandler.Create)
	order.Get("/list", orderHandler.List)
	order.Get("/:order_no", orderHandler.Get)

	emoji := api.Group("/emoji", jwt)
	emoji.Post("/upload", emojiHandler.Upload)
	emoji.Post("/detect", emojiHandler.Detect)
	emoji.Post("/create", emojiHandler.Create)
	emoji.Get("/task/:id", emojiHandler.Get)
	emoji.Get("/history", emojiHandler.History)
	emoji.Delete("/task/:id", emojiHandler.Delete)

	api.Get("/subscription/status", jwt, subscriptionHandler.Status)

	// Webhooks use shared-secret auth, no JWT
	api.Post("/webhooks/revenuecat", webhookHandler.HandleRevenueCat)
}
