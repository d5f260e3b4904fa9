package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"codecollab/internal/models"
	"codecollab/internal/utils"
)

const DefaultChannel = "collab:rooms"

// Envelope is what travels between instances on the relay channel.
type Envelope struct {
	InstanceID string         `json:"instanceId"`
	SessionID  string         `json:"sessionId"`
	Frame      models.WSFrame `json:"frame"`
}

// Redis relays room broadcasts between server instances over pub/sub.
// Presence and lifecycle stay local to each instance.
type Redis struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	log        *utils.Logger
}

func NewRedis(rdb *redis.Client, channel string, log *utils.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// InstanceID returns the id stamped on every envelope this relay publishes.
func (r *Redis) InstanceID() string { return r.instanceID }

func (r *Redis) Publish(ctx context.Context, sessionID string, frame models.WSFrame) error {
	data, err := json.Marshal(Envelope{InstanceID: r.instanceID, SessionID: sessionID, Frame: frame})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}
	return r.rdb.Publish(ctx, r.channel, data).Err()
}

// Run delivers envelopes published by other instances until ctx is cancelled.
func (r *Redis) Run(ctx context.Context, deliver func(sessionID string, frame models.WSFrame)) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	ch := pubsub.Channel()
	r.log.Info("relay subscribed", "channel", r.channel, "instance", r.instanceID)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "instance", r.instanceID)
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("relay: failed to parse envelope", "error", err.Error())
				continue
			}
			if env.InstanceID == r.instanceID || env.SessionID == "" {
				continue
			}
			deliver(env.SessionID, env.Frame)
		}
	}
}
