package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

const DefaultPubSubChannel = "denguegen:chat-events"

// pubSubEnvelope tags a message with the node that published it so that node
// can skip its own echo.
type pubSubEnvelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

type RedisPubSub struct {
	log        *logger.Logger
	client     redis.UniversalClient
	channel    string
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewRedisPubSub uses an already connected client.
func NewRedisPubSub(log *logger.Logger, client redis.UniversalClient, channel string) *RedisPubSub {
	if channel == "" {
		channel = DefaultPubSubChannel
	}
	return &RedisPubSub{
		log:     log.With("component", "RedisPubSub"),
		client:  client,
		channel: channel,
	}
}

func (rp *RedisPubSub) StartSubscriber(hub *Hub) error {
	ctx, cancel := context.WithCancel(context.Background())
	rp.mu.Lock()
	rp.cancelFunc = cancel
	rp.mu.Unlock()

	pubsub := rp.client.Subscribe(ctx, rp.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}
	rp.log.Info("RedisPubSub subscribed successfully", "channel", rp.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				rp.log.Debug("Redis pubsub context done, stopping subscription goroutine")
				return
			case msg, ok := <-ch:
				if !ok {
					rp.log.Debug("PubSub channel closed, stopping subscription goroutine")
					return
				}
				env, err := decodePubSubMessage(msg.Payload)
				if err != nil {
					rp.log.Warn("Failed to decode pubsub message", "error", err)
					continue
				}
				if env.Origin == hub.NodeID() {
					continue
				}
				hub.localBroadcast(Message{Channel: env.Channel, Payload: env.Payload})
			}
		}
	}()
	return nil
}

func (rp *RedisPubSub) Publish(ctx context.Context, origin string, msg Message) error {
	payload, err := encodePubSubMessage(origin, msg)
	if err != nil {
		rp.log.Warn("failed to encode message for redis", "error", err)
		return err
	}
	return rp.client.Publish(ctx, rp.channel, payload).Err()
}

func (rp *RedisPubSub) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.cancelFunc != nil {
		rp.cancelFunc()
		rp.cancelFunc = nil
	}
}

func encodePubSubMessage(origin string, m Message) (string, error) {
	rawPayload, err := json.Marshal(m.Payload)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(pubSubEnvelope{Origin: origin, Channel: m.Channel, Payload: rawPayload})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodePubSubMessage(payload string) (pubSubEnvelope, error) {
	var env pubSubEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return env, nil
}
