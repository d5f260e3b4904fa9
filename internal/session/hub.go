package session

import (
	"sync"

	"codecollab/internal/models"
)

// Transport is the subscription capability the Broadcaster fans out over.
type Transport interface {
	Subscribe(sessionID string, c *Client)
	Unsubscribe(sessionID string, c *Client)
	Publish(sessionID string, frame models.WSFrame)
	PublishExcept(sessionID string, frame models.WSFrame, except *Client)
	Dissolve(sessionID string)
	Member(sessionID string, c *Client) bool
}

// Hub manages all transport rooms on this instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*Room)} }

func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, id)
}

func (h *Hub) Subscribe(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = NewRoom(sessionID)
		h.rooms[sessionID] = r
	}
	r.Join(c)
}

// Unsubscribe removes c and drops the room once it is empty.
func (h *Hub) Unsubscribe(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if r.Leave(c) == 0 {
		delete(h.rooms, sessionID)
	}
}

func (h *Hub) Publish(sessionID string, frame models.WSFrame) {
	h.PublishExcept(sessionID, frame, nil)
}

func (h *Hub) PublishExcept(sessionID string, frame models.WSFrame, except *Client) {
	r, ok := h.Get(sessionID)
	if !ok {
		return
	}
	r.Broadcast(except, frame)
}

// Member reports whether c is subscribed to the live room for sessionID.
// A connection from a dissolved room is never a member of its successor.
func (h *Hub) Member(sessionID string, c *Client) bool {
	r, ok := h.Get(sessionID)
	return ok && r.Has(c)
}

// Dissolve forgets the room and all of its subscriptions.
func (h *Hub) Dissolve(sessionID string) {
	h.Delete(sessionID)
}
