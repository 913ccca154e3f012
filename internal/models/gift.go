package models

import "time"

// GiftTransaction is the immutable ledger row written once per successful gift.
type GiftTransaction struct {
	ID            int64     `json:"id"`
	FromAccountID int64     `json:"from_user"`
	ToAccountID   int64     `json:"to_user"`
	FromUsername  string    `json:"from_username,omitempty"` // joined, not stored
	ToUsername    string    `json:"to_username,omitempty"`   // joined, not stored
	Value         int64     `json:"value"`
	CreatedAt     time.Time `json:"created_at"`
}
