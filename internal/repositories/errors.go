package repositories

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrAlreadyLocked     = errors.New("accounts already locked in this transaction")
)
