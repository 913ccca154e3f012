package services

import "errors"

// Wallet
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownRecipient  = errors.New("unknown recipient")
	ErrSelfTransfer      = errors.New("cannot send a gift to yourself")
	ErrInvalidValue      = errors.New("gift value must be positive")
	ErrAccountNotFound   = errors.New("account not found")
)

// Auth
var (
	ErrInvalidUsername    = errors.New("username must be 3-32 letters, digits, '.', '_' or '-'")
	ErrInvalidPassword    = errors.New("password must be at least 6 characters")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
