package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codecollab/internal/metrics"
	"codecollab/internal/models"
)

const (
	DefaultQueueSize = 64
	writeWait        = 10 * time.Second
)

// Client is one websocket connection. Frames are queued and written by
// WritePump so that a slow peer never blocks a broadcast.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	mu     sync.Mutex
	send   chan models.WSFrame
	closed bool
	hook   func(models.WSFrame)
}

func NewClient(conn *websocket.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		send: make(chan models.WSFrame, queueSize),
	}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send enqueues frame without blocking. It reports false when the frame was dropped.
func (c *Client) Send(frame models.WSFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return true
	}
	if c.closed {
		metrics.DroppedFrames.Inc()
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.DroppedFrames.Inc()
		return false
	}
}

// WritePump drains the outbound queue into the connection until Close.
func (c *Client) WritePump() {
	conn := c.Conn
	for frame := range c.send {
		if conn == nil {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			// a dead peer stops writes but the queue is still drained until Close
			conn = nil
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
