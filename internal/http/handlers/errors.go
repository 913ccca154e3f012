package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/http/dto"
	"github.com/theplug/backend/internal/middleware"
	"github.com/theplug/backend/internal/services"
	"go.uber.org/zap"
)

type httpError struct {
	status int
	body   dto.ErrorResponse
}

func badRequest(msg string) *httpError {
	return &httpError{fiber.StatusBadRequest, dto.ErrorResponse{Error: msg, Code: dto.CodeBadRequest}}
}

func toHTTPError(err error) *httpError {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		return &httpError{fiber.StatusBadRequest, dto.ErrorResponse{Error: "insufficient coins", Code: dto.CodeInsufficientFunds}}
	case errors.Is(err, services.ErrUnknownRecipient):
		return &httpError{fiber.StatusBadRequest, dto.ErrorResponse{Error: "recipient not found", Code: dto.CodeUnknownRecipient}}
	case errors.Is(err, services.ErrSelfTransfer):
		return &httpError{fiber.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeSelfTransfer}}
	case errors.Is(err, services.ErrInvalidValue):
		return &httpError{fiber.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeInvalidValue}}

	case errors.Is(err, services.ErrInvalidUsername), errors.Is(err, services.ErrInvalidPassword):
		return badRequest(err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		return &httpError{fiber.StatusConflict, dto.ErrorResponse{Error: "username taken", Code: dto.CodeUsernameTaken}}
	case errors.Is(err, services.ErrInvalidCredentials):
		return &httpError{fiber.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials", Code: dto.CodeInvalidCreds}}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code := dto.CodeBadRequest
		switch fe.Code {
		case fiber.StatusNotFound:
			code = dto.CodeNotFound
		case fiber.StatusUnauthorized:
			code = dto.CodeUnauthorized
		}
		return &httpError{fe.Code, dto.ErrorResponse{Error: fe.Message, Code: code}}
	}

	// AccountNotFound lands here: a token for a vanished account is an integrity failure.
	return &httpError{fiber.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error", Code: dto.CodeInternal}}
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	he := toHTTPError(err)
	if he.status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(he.status).JSON(he.body)
}

// ErrorHandler is the fiber app error handler; it renders every error in the
// same shape as handler-level failures.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, log, err)
	}
}
