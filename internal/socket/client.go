package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

//---------------------------------------------------------------------
// Public message formats
//---------------------------------------------------------------------
type InboundMessage struct {
	Action  string `json:"action,omitempty"` // "subscribe" | "unsubscribe" | "ping"
	Channel string `json:"channel,omitempty"`
}

type Message struct {
	Channel string      `json:"channel,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

//---------------------------------------------------------------------
// Tunables
//---------------------------------------------------------------------
const (
	OutboundChanBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

//---------------------------------------------------------------------
// Client
//---------------------------------------------------------------------
type Client struct {
	ID        uuid.UUID
	UserID    string
	Conn      *websocket.Conn
	Hub       *Hub
	Log       *logger.Logger
	cancelFn  context.CancelFunc
	Outbound  chan Message
	closeOnce sync.Once
}

// NewClient constructs a Client for an authenticated user. The cancel function
// comes from the handler so the HTTP context can finish while the WS lives on.
func NewClient(conn *websocket.Conn, hub *Hub, userID string,
	cancel context.CancelFunc, log *logger.Logger) *Client {

	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Log:      log.With("client", id, "userID", userID),
		cancelFn: cancel,
		Outbound: make(chan Message, OutboundChanBuffer),
	}
}

func (c *Client) ReadLoop(ctx context.Context)  { c.readLoop(ctx) }
func (c *Client) WriteLoop(ctx context.Context) { c.writeLoop(ctx) }

//---------------------------------------------------------------------
// readLoop – inbound → Hub
//---------------------------------------------------------------------
func (c *Client) readLoop(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(1 << 16)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			c.Log.Debug("websocket read error → closing client", "error", err)
			return
		}

		var inbound InboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.Log.Debug("failed to unmarshal inbound message", "error", err, "raw", string(data))
			continue
		}

		switch inbound.Action {
		case "subscribe":
			// Clients may only listen to their own user channel.
			if inbound.Channel == UserChannel(c.UserID) {
				c.Hub.Subscribe(c, []string{inbound.Channel})
			} else {
				c.Log.Warn("refused subscription to foreign channel", "channel", inbound.Channel)
			}
		case "unsubscribe":
			if inbound.Channel != "" {
				c.Hub.UnsubscribeFromChannel(c, inbound.Channel)
			}
		case "ping":
			c.send(Message{Channel: UserChannel(c.UserID), Payload: map[string]string{"type": "pong"}})
		default:
			c.Log.Debug("inbound WS message unhandled", "message", inbound)
		}
	}
}

//---------------------------------------------------------------------
// writeLoop – Hub → outbound
//---------------------------------------------------------------------
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.Log.Debug("writeLoop ctx done → shutdown")
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-c.Outbound:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Log.Debug("outbound channel closed → shutdown")
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeJSON(msg); err != nil {
				c.Log.Warn("failed writing JSON", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Debug("ping error → shutdown", "error", err)
				return
			}
		}
	}
}

//---------------------------------------------------------------------
// utilities
//---------------------------------------------------------------------

// send queues msg without blocking. Used for direct replies to this client.
func (c *Client) send(msg Message) {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.isRegistered(c) {
		return
	}
	select {
	case c.Outbound <- msg:
	default:
		c.Log.Warn("Dropping direct message; outbound buffer full")
	}
}

func (c *Client) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err = w.Write(payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// close is safe to call from both pumps. The client leaves the hub before its
// outbound channel is closed so no broadcast can write to a closed channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Log.Debug("closing client connection")
		if c.cancelFn != nil {
			c.cancelFn()
		}
		c.Hub.Unsubscribe(c)
		close(c.Outbound)
		_ = c.Conn.Close()
	})
}
