package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/theplug/backend/internal/config"
	"github.com/theplug/backend/internal/http/handlers"
	"github.com/theplug/backend/internal/metrics"
	"github.com/theplug/backend/internal/middleware"
	"go.uber.org/zap"
)

// NewApp builds the fiber app with the shared error handler.
func NewApp(log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "theplug-api",
		ErrorHandler: handlers.ErrorHandler(log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
}

// SetupRouter registers every route. rdb may be nil, which disables rate limiting.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	giftHandler *handlers.GiftHandler,
	presenceHandler *handlers.PresenceHandler,
	wsHandler *handlers.WSHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	limit := func(prefix string) fiber.Handler {
		if rdb == nil {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		return middleware.RateLimitMiddleware(rdb, prefix, cfg.RateLimitPerMinute, time.Minute, log)
	}
	requireAuth := middleware.AuthMiddleware(cfg, log)

	api := app.Group("/api")

	// Auth
	api.Post("/auth/register", limit("auth"), authHandler.Register)
	api.Post("/auth/login", limit("auth"), authHandler.Login)
	api.Get("/auth/me", requireAuth, authHandler.Me)

	// Gifts
	api.Post("/gifts/send", requireAuth, limit("gifts"), giftHandler.Send)
	api.Get("/gifts", requireAuth, giftHandler.History)

	// Presence
	api.Get("/presence/:username", presenceHandler.Get)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHandler.HandleWS))
}
