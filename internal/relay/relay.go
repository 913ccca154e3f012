// Package relay routes real-time frames between live connections: broadcast
// to everyone, unicast to a connection or an identity, and the WebRTC
// signaling hand-off between two bound peers.
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theplug/backend/internal/metrics"
	"github.com/theplug/backend/internal/presence"
	"go.uber.org/zap"
)

// TokenVerifier resolves a session token to the identity it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Target addresses a unicast. ConnectionID wins when both are set.
type Target struct {
	ConnectionID string
	Identity     string
}

func ToConnection(id string) Target { return Target{ConnectionID: id} }

func ToIdentity(identity string) Target { return Target{Identity: identity} }

type Relay struct {
	registry   *presence.Registry
	verifier   TokenVerifier
	sendBuffer int
	log        *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func New(registry *presence.Registry, verifier TokenVerifier, sendBuffer int, log *zap.Logger) *Relay {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Relay{
		registry:   registry,
		verifier:   verifier,
		sendBuffer: sendBuffer,
		log:        log,
		clients:    make(map[string]*Client),
	}
}

// Connect registers a new anonymous connection and queues its hello frame.
func (r *Relay) Connect() *Client {
	c := newClient(uuid.NewString(), r.sendBuffer)

	r.mu.Lock()
	r.clients[c.id] = c
	total := len(r.clients)
	r.mu.Unlock()

	metrics.ConnectionOpened()
	r.log.Debug("relay client connected", zap.String("conn_id", c.id), zap.Int("total_clients", total))

	r.deliver(c, EventConnected, mustEncode(EventConnected, Hello{ID: c.id}))
	return c
}

// Disconnect removes c, releases its presence binding and closes its queue.
// Calling it more than once is safe.
func (r *Relay) Disconnect(c *Client) {
	r.mu.Lock()
	_, ok := r.clients[c.id]
	if ok {
		delete(r.clients, c.id)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.registry.Unbind(c.id)
	c.close()
	metrics.ConnectionClosed()
	r.log.Debug("relay client disconnected",
		zap.String("conn_id", c.id),
		zap.Duration("connection_duration", time.Since(c.connectedAt)),
		zap.Int("total_clients", total))
}

// Authenticate binds c to identity and re-sends the hello frame with it.
func (r *Relay) Authenticate(c *Client, identity string) error {
	if !r.live(c.id) {
		return fmt.Errorf("authenticate %s: connection closed", c.id)
	}
	if err := r.registry.Bind(c.id, identity); err != nil {
		return err
	}
	// Disconnect may have run between the check and the bind.
	if !r.live(c.id) {
		r.registry.Unbind(c.id)
		return fmt.Errorf("authenticate %s: connection closed", c.id)
	}
	r.deliver(c, EventConnected, mustEncode(EventConnected, Hello{ID: c.id, Identity: identity}))
	return nil
}

// IdentityOf returns the identity c is bound to, if any.
func (r *Relay) IdentityOf(c *Client) (string, bool) {
	return r.registry.IdentityOf(c.id)
}

// Broadcast queues the frame on every live connection, anonymous ones included.
func (r *Relay) Broadcast(event string, payload any) int {
	frame, err := Frame(event, payload)
	if err != nil {
		r.log.Error("relay encode failed", zap.String("event", event), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if r.deliver(c, event, frame) {
			sent++
		}
	}
	return sent
}

// Unicast queues the frame on the connections named by target. An identity
// resolves to all of its live connections. No match is not an error.
func (r *Relay) Unicast(target Target, event string, payload any) int {
	clients := r.resolve(target)
	if len(clients) == 0 {
		r.log.Debug("relay unicast without recipient",
			zap.String("event", event),
			zap.String("conn_id", target.ConnectionID),
			zap.String("identity", target.Identity))
		return 0
	}

	frame, err := Frame(event, payload)
	if err != nil {
		r.log.Error("relay encode failed", zap.String("event", event), zap.Error(err))
		return 0
	}

	sent := 0
	for _, c := range clients {
		if r.deliver(c, event, frame) {
			sent++
		}
	}
	return sent
}

// Signal forwards a WebRTC offer, answer or ICE candidate from one
// connection to another. The payload is never inspected and the outbound
// from field is always the sender's connection id. Targets that are gone or
// not bound to an identity are dropped silently.
func (r *Relay) Signal(from *Client, kind string, raw json.RawMessage) error {
	field, ok := signalField[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
	}

	var in map[string]json.RawMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return ErrInvalidSignal
	}

	var to string
	if err := json.Unmarshal(in["to"], &to); err != nil || to == "" {
		return ErrInvalidSignal
	}
	payload, ok := in[field]
	if !ok || string(payload) == "null" {
		return ErrInvalidSignal
	}

	if _, bound := r.registry.IdentityOf(to); !bound || !r.live(to) {
		r.log.Debug("relay signal target unavailable",
			zap.String("event", kind),
			zap.String("from_conn", from.id),
			zap.String("to_conn", to))
		return nil
	}

	out := map[string]json.RawMessage{
		"from": mustEncodeString(from.id),
		field:  payload,
	}
	r.Unicast(ToConnection(to), kind, out)
	return nil
}

// HandleMessage decodes one inbound frame from c and dispatches it. Errors
// are also reported back to c as an error event.
func (r *Relay) HandleMessage(c *Client, raw []byte) error {
	err := r.dispatch(c, raw)
	if err != nil {
		r.deliver(c, EventError, mustEncode(EventError, ErrorNotice{Message: err.Error()}))
	}
	return err
}

func (r *Relay) dispatch(c *Client, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		return ErrMalformedFrame
	}

	switch env.Event {
	case EventChat, EventGift:
		r.Broadcast(env.Event, env.Data)
		return nil
	case EventOffer, EventAnswer, EventICE:
		return r.Signal(c, env.Event, env.Data)
	case EventAuth:
		return r.authenticate(c, env.Data)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
}

func (r *Relay) authenticate(c *Client, data json.RawMessage) error {
	if r.verifier == nil {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, EventAuth)
	}

	var req authRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Token == "" {
		return ErrUnauthorized
	}

	identity, err := r.verifier.VerifyToken(req.Token)
	if err != nil {
		return ErrUnauthorized
	}
	return r.Authenticate(c, identity)
}

// Len returns the number of live connections.
func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close disconnects every live connection.
func (r *Relay) Close() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		r.Disconnect(c)
	}
	r.log.Info("relay closed", zap.Int("disconnected_clients", len(clients)))
}

func (r *Relay) live(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[connID]
	return ok
}

func (r *Relay) resolve(target Target) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target.ConnectionID != "" {
		if c, ok := r.clients[target.ConnectionID]; ok {
			return []*Client{c}
		}
		return nil
	}
	if target.Identity == "" {
		return nil
	}

	var out []*Client
	for _, id := range r.registry.ConnectionsFor(target.Identity) {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Relay) deliver(c *Client, event string, frame []byte) bool {
	dropped, queued := c.enqueue(frame)
	if dropped {
		metrics.RecordDroppedFrame()
		r.log.Warn("relay frame dropped - client buffer full", zap.String("conn_id", c.id))
	}
	if queued {
		metrics.RecordFrame(event)
	}
	return queued
}

func mustEncode(event string, payload any) []byte {
	frame, err := Frame(event, payload)
	if err != nil {
		panic(err)
	}
	return frame
}

func mustEncodeString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
