package session

import (
	"context"

	"codecollab/internal/metrics"
	"codecollab/internal/models"
	"codecollab/internal/utils"
)

// Relay forwards room events to other server instances.
type Relay interface {
	Publish(ctx context.Context, sessionID string, frame models.WSFrame) error
}

// Broadcaster fans events out to the connections subscribed to a room.
// Delivery is fire-and-forget: no acknowledgement and no retry.
type Broadcaster struct {
	transport Transport
	relay     Relay
	log       *utils.Logger
}

func NewBroadcaster(t Transport, log *utils.Logger) *Broadcaster {
	return &Broadcaster{transport: t, log: log}
}

// SetRelay enables cross-instance delivery.
func (b *Broadcaster) SetRelay(r Relay) { b.relay = r }

func (b *Broadcaster) Subscribe(sessionID string, c *Client)   { b.transport.Subscribe(sessionID, c) }
func (b *Broadcaster) Unsubscribe(sessionID string, c *Client) { b.transport.Unsubscribe(sessionID, c) }

// Member reports whether c currently belongs to the session's room.
func (b *Broadcaster) Member(sessionID string, c *Client) bool {
	return c != nil && b.transport.Member(sessionID, c)
}

// Broadcast delivers eventType/payload to the room. When excludeOriginator is
// set, origin does not receive its own event.
func (b *Broadcaster) Broadcast(ctx context.Context, sessionID, eventType string, payload any, origin *Client, excludeOriginator bool) {
	frame := models.WSFrame{Type: eventType, Data: payload}
	if excludeOriginator && origin != nil {
		b.transport.PublishExcept(sessionID, frame, origin)
	} else {
		b.transport.Publish(sessionID, frame)
	}
	metrics.Broadcasts.WithLabelValues(eventType).Inc()

	if b.relay == nil {
		return
	}
	if err := b.relay.Publish(ctx, sessionID, frame); err != nil {
		b.log.Warn("relay publish failed", "session", sessionID, "event", eventType, "error", err.Error())
		return
	}
	metrics.RelayMessages.WithLabelValues("out").Inc()
}

// SendTo emits a private event to one connection.
func (b *Broadcaster) SendTo(c *Client, eventType string, payload any) {
	if c == nil {
		return
	}
	c.Send(models.WSFrame{Type: eventType, Data: payload})
}

// Deliver hands a frame received from another instance to local subscribers.
func (b *Broadcaster) Deliver(sessionID string, frame models.WSFrame) {
	b.transport.Publish(sessionID, frame)
	metrics.RelayMessages.WithLabelValues("in").Inc()
}

// Close makes the room defunct; later broadcasts to it reach nobody.
func (b *Broadcaster) Close(sessionID string) { b.transport.Dissolve(sessionID) }
