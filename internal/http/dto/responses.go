package dto

import (
	"time"

	"github.com/theplug/backend/internal/models"
)

// Error codes
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidCreds      = "INVALID_CREDENTIALS"
	CodeUsernameTaken     = "USERNAME_TAKEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeUnknownRecipient  = "UNKNOWN_RECIPIENT"
	CodeSelfTransfer      = "SELF_TRANSFER"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeInternal          = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Coins     int64     `json:"coins"`
	Earnings  int64     `json:"earnings"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Coins:     a.Coins,
		Earnings:  a.Earnings,
		CreatedAt: a.CreatedAt,
	}
}

type AuthResponse struct {
	Token string          `json:"token"`
	User  AccountResponse `json:"user"`
}

type PresenceResponse struct {
	Username    string   `json:"username"`
	Online      bool     `json:"online"`
	Connections []string `json:"connections"`
}
