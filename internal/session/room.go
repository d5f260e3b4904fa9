package session

import (
	"sync"

	"codecollab/internal/models"
)

// Room is the set of live connections associated with a session id.
type Room struct {
	ID      string
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]struct{}),
	}
}

func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

func (r *Room) Has(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[c]
	return ok
}

func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	return len(r.clients)
}

// Broadcast sends frame to every client except sender. A nil sender reaches everyone.
func (r *Room) Broadcast(sender *Client, frame models.WSFrame) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		if c == sender {
			continue
		}
		c.Send(frame)
	}
}
