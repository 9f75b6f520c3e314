package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/pbazhin/studyhub/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// wireConn is an indirection over *websocket.Conn to ease testing.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is a single client connection. It implements core.Conn: the hub and
// registry only ever see this interface, never the socket itself.
type Conn struct {
	id   string
	ws   wireConn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewConn(id string, ws wireConn) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan core.Frame, 32),
	}
}

func (c *Conn) ID() string { return c.id }

// TrySend queues a frame without blocking. A full buffer means the consumer
// is too slow; the frame is dropped and the caller decides what to do.
func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}
