package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/http/dto"
	"github.com/theplug/backend/internal/presence"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// GET /api/presence/:username
func (h *PresenceHandler) Get(c *fiber.Ctx) error {
	username := c.Params("username")
	conns := h.registry.ConnectionsFor(username)
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PresenceResponse{
		Username:    username,
		Online:      len(conns) > 0,
		Connections: conns,
	}})
}
