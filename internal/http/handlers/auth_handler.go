package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/http/dto"
	"github.com/theplug/backend/internal/middleware"
	"github.com/theplug/backend/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService   *services.AuthService
	walletService *services.WalletService
	log           *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, walletService *services.WalletService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, walletService: walletService, log: log}
}

// Register creates an account with the starting coin balance.
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("invalid request body").body)
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("username and password required").body)
	}

	session, err := h.authService.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.AuthResponse{Token: session.Token, User: dto.NewAccountResponse(session.Account)})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("invalid request body").body)
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest("username and password required").body)
	}

	session, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.AuthResponse{Token: session.Token, User: dto.NewAccountResponse(session.Account)})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	account, err := h.walletService.Balance(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewAccountResponse(account))
}
