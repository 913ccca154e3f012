package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/auth"
	"github.com/theplug/backend/internal/config"
	"github.com/theplug/backend/internal/http/dto"
	"go.uber.org/zap"
)

const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "missing authorization header", Code: dto.CodeUnauthorized})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader || tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid authorization format", Code: dto.CodeUnauthorized})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid or expired token", Code: dto.CodeUnauthorized})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxUsername, claims.Username)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(CtxUserID).(int64)
	return id
}

func GetUsername(c *fiber.Ctx) string {
	name, _ := c.Locals(CtxUsername).(string)
	return name
}
