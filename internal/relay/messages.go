package relay

import (
	"encoding/json"
	"errors"
)

// Event names carried in the frame envelope.
const (
	EventConnected = "connected"
	EventError     = "error"
	EventAuth      = "auth"
	EventChat      = "chat"
	EventGift      = "gift"
	EventOffer     = "webrtc-offer"
	EventAnswer    = "webrtc-answer"
	EventICE       = "webrtc-ice"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrInvalidSignal  = errors.New("signal requires to and payload")
	ErrUnauthorized   = errors.New("invalid token")
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hello is sent to a connection when it joins and again once it authenticates.
type Hello struct {
	ID       string `json:"id"`
	Identity string `json:"identity,omitempty"`
}

// GiftNotice is the payload of a gift committed through the wallet.
type GiftNotice struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value int64  `json:"value"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

type authRequest struct {
	Token string `json:"token"`
}

// signalField maps a signaling event to the opaque payload field it carries.
var signalField = map[string]string{
	EventOffer:  "offer",
	EventAnswer: "answer",
	EventICE:    "candidate",
}

// IsSignal reports whether event is one of the WebRTC signaling events.
func IsSignal(event string) bool {
	_, ok := signalField[event]
	return ok
}

// Frame encodes an outbound frame.
func Frame(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}
