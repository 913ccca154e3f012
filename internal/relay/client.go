package relay

import (
	"sync"
	"time"
)

// DefaultSendBuffer is the outbound queue size used when none is configured.
const DefaultSendBuffer = 64

// Client is one live real-time connection. Outbound frames are queued on a
// bounded channel that the transport writer drains.
type Client struct {
	id          string
	connectedAt time.Time

	mu     sync.Mutex // guards send and closed for producers
	send   chan []byte
	closed bool
}

func newClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		id:          id,
		connectedAt: time.Now(),
		send:        make(chan []byte, buffer),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Send returns the outbound queue. It is closed on disconnect.
func (c *Client) Send() <-chan []byte { return c.send }

// enqueue adds frame to the queue, evicting the oldest frame when full.
// It reports whether a frame was evicted and whether the frame was queued.
func (c *Client) enqueue(frame []byte) (dropped, queued bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, false
	}

	select {
	case c.send <- frame:
		return false, true
	default:
	}

	select {
	case <-c.send:
		dropped = true
	default:
	}

	select {
	case c.send <- frame:
		return dropped, true
	default:
		return dropped, false
	}
}

func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}
