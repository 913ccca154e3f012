package dto

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SendGiftRequest accepts the gift value as "value" or the older "amount".
type SendGiftRequest struct {
	ToUsername string `json:"toUsername"`
	Value      *int64 `json:"value,omitempty"`
	Amount     *int64 `json:"amount,omitempty"`
}

// GiftValue returns the requested value, preferring "value" over "amount".
func (r SendGiftRequest) GiftValue() (int64, bool) {
	switch {
	case r.Value != nil:
		return *r.Value, true
	case r.Amount != nil:
		return *r.Amount, true
	default:
		return 0, false
	}
}
