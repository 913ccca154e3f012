package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/http/dto"
	"github.com/theplug/backend/internal/middleware"
	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/services"
	"go.uber.org/zap"
)

// GiftNotifier is told about every committed gift.
type GiftNotifier interface {
	Notify(gift *models.GiftTransaction)
}

type GiftHandler struct {
	walletService *services.WalletService
	notifier      GiftNotifier
	log           *zap.Logger
}

func NewGiftHandler(walletService *services.WalletService, notifier GiftNotifier, log *zap.Logger) *GiftHandler {
	return &GiftHandler{walletService: walletService, notifier: notifier, log: log}
}

// Send transfers coins from the caller to another account.
// POST /api/gifts/send
func (h *GiftHandler) Send(c *fiber.Ctx) error {
	var req dto.SendGiftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("invalid request body").body)
	}
	if req.ToUsername == "" {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("toUsername is required").body)
	}
	value, ok := req.GiftValue()
	if !ok {
		return writeError(c, h.log, services.ErrInvalidValue)
	}

	gift, err := h.walletService.Transfer(c.UserContext(), middleware.GetUserID(c), req.ToUsername, value)
	if err != nil {
		return writeError(c, h.log, err)
	}

	// Best effort: failures are logged inside the notifier.
	h.notifier.Notify(gift)

	return c.JSON(dto.SuccessResponse{OK: true, Data: gift})
}

// History lists the caller's sent and received gifts.
// GET /api/gifts?limit=&offset=
func (h *GiftHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", services.DefaultHistoryLimit)
	offset := c.QueryInt("offset", 0)

	gifts, err := h.walletService.History(c.UserContext(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gifts})
}
