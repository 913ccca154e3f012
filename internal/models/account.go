package models

import "time"

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Coins        int64     `json:"coins"`
	Earnings     int64     `json:"earnings"`
	CreatedAt    time.Time `json:"created_at"`
}
