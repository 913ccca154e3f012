package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/theplug/backend/internal/relay"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 << 10
)

// WSHandler bridges websocket connections to the relay. Each connection gets
// a reader (this handler) and a writer goroutine draining the relay queue.
type WSHandler struct {
	relay    *relay.Relay
	verifier relay.TokenVerifier
	log      *zap.Logger
}

func NewWSHandler(r *relay.Relay, verifier relay.TokenVerifier, log *zap.Logger) *WSHandler {
	return &WSHandler{relay: r, verifier: verifier, log: log}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHandler) HandleWS(conn *websocket.Conn) {
	// Token is optional; without one the connection only consumes broadcasts.
	var identity string
	if token := conn.Query("token"); token != "" {
		var err error
		identity, err = h.verifier.VerifyToken(token)
		if err != nil {
			h.log.Debug("ws token rejected", zap.Error(err))
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, errorFrame("invalid token"))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
			return
		}
	}

	client := h.relay.Connect()
	if identity != "" {
		if err := h.relay.Authenticate(client, identity); err != nil {
			h.log.Warn("ws bind failed", zap.String("conn_id", client.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go h.writePump(conn, client, done)

	defer func() {
		h.relay.Disconnect(client)
		<-done
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read error", zap.String("conn_id", client.ID()), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := h.relay.HandleMessage(client, msg); err != nil {
			h.log.Debug("ws message rejected", zap.String("conn_id", client.ID()), zap.Error(err))
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, client *relay.Client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.fail(conn, client, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.fail(conn, client, err)
				return
			}
		}
	}
}

// fail drops a connection whose writes no longer succeed and unblocks its reader.
func (h *WSHandler) fail(conn *websocket.Conn, client *relay.Client, err error) {
	h.log.Debug("ws write error", zap.String("conn_id", client.ID()), zap.Error(err))
	h.relay.Disconnect(client)
	_ = conn.Close()
}

func errorFrame(msg string) []byte {
	b, _ := relay.Frame(relay.EventError, relay.ErrorNotice{Message: msg})
	return b
}
