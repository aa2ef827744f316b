package socket

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

// UserChannel is the channel that carries every chat event of one user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Hub fans messages out to the websocket clients of this node and, when a
// RedisPubSub is attached, to the other nodes.
type Hub struct {
	log      *logger.Logger
	nodeID   string
	mu       sync.RWMutex
	clients  map[uuid.UUID]*Client
	channels map[string]map[uuid.UUID]*Client

	redisPubSub *RedisPubSub
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:      log.With("component", "Hub"),
		nodeID:   uuid.NewString(),
		clients:  make(map[uuid.UUID]*Client),
		channels: make(map[string]map[uuid.UUID]*Client),
	}
}

func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
	h.redisPubSub = rp
}

func (h *Hub) NodeID() string {
	return h.nodeID
}

// Register adds the client to the hub and subscribes it to its user channel.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()
	h.Subscribe(client, []string{UserChannel(client.UserID)})
}

func (h *Hub) isRegistered(client *Client) bool {
	_, ok := h.clients[client.ID]
	return ok
}

func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.isRegistered(client) {
		return
	}
	for _, ch := range channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[uuid.UUID]*Client)
		}
		h.channels[ch][client.ID] = client
	}
	h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

// Unsubscribe removes the client from the hub entirely.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.isRegistered(client) {
		return
	}
	delete(h.clients, client.ID)
	for ch, clientsMap := range h.channels {
		if _, ok := clientsMap[client.ID]; ok {
			delete(clientsMap, client.ID)
			if len(clientsMap) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	metrics.WebsocketClients.Dec()
	h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clientsMap, ok := h.channels[channel]; ok {
		delete(clientsMap, client.ID)
		if len(clientsMap) == 0 {
			delete(h.channels, channel)
		}
	}
}

// ClientCount returns the number of clients listening on channel.
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) localBroadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientsMap, ok := h.channels[msg.Channel]
	if !ok {
		return
	}
	for _, client := range clientsMap {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
		}
	}
}

// BroadcastGlobal delivers to local clients and publishes to other nodes.
func (h *Hub) BroadcastGlobal(ctx context.Context, msg Message) {
	h.localBroadcast(msg)
	if h.redisPubSub != nil {
		if err := h.redisPubSub.Publish(ctx, h.nodeID, msg); err != nil {
			h.log.Warn("Failed to publish to Redis", "error", err)
		}
	}
}

// Publish sends a chat event to every connection of the user.
func (h *Hub) Publish(ctx context.Context, userID string, event types.ChatEvent) {
	h.BroadcastGlobal(ctx, Message{Channel: UserChannel(userID), Payload: event})
}
