package socket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

// testClient builds a client without a connection; only Outbound is used.
func testClient(hub *Hub, userID string) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Hub:      hub,
		Log:      logger.Nop(),
		Outbound: make(chan Message, OutboundChanBuffer),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.Outbound:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Outbound:
		t.Fatalf("unexpected message on %s", msg.Channel)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_PublishReachesOnlyTheUser(t *testing.T) {
	hub := NewHub(logger.Nop())
	alice := testClient(hub, "alice")
	bob := testClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	assert.Equal(t, 1, hub.ClientCount(UserChannel("alice")))

	hub.Publish(context.Background(), "alice", types.ChatEvent{Type: types.EventTyping, ChatID: "c1"})

	msg := receive(t, alice)
	assert.Equal(t, "user:alice", msg.Channel)
	event, ok := msg.Payload.(types.ChatEvent)
	require.True(t, ok)
	assert.Equal(t, types.EventTyping, event.Type)
	assertSilent(t, bob)

	hub.Unsubscribe(alice)
	assert.Zero(t, hub.ClientCount(UserChannel("alice")))
	hub.Publish(context.Background(), "alice", types.ChatEvent{Type: types.EventTyping, ChatID: "c1"})
	assertSilent(t, alice)
}

func TestPubSubEnvelope_RoundTrip(t *testing.T) {
	raw, err := encodePubSubMessage("node-1", Message{
		Channel: "user:alice",
		Payload: types.ChatEvent{Type: types.EventChatDeleted, ChatID: "c1"},
	})
	require.NoError(t, err)

	env, err := decodePubSubMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "node-1", env.Origin)
	assert.Equal(t, "user:alice", env.Channel)

	var event types.ChatEvent
	require.NoError(t, json.Unmarshal(env.Payload, &event))
	assert.Equal(t, types.EventChatDeleted, event.Type)

	_, err = decodePubSubMessage("{broken")
	assert.Error(t, err)
}

func TestRedisPubSub_FansOutAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	hubA := NewHub(logger.Nop())
	hubB := NewHub(logger.Nop())
	psA := NewRedisPubSub(logger.Nop(), newClient(), "test-events")
	psB := NewRedisPubSub(logger.Nop(), newClient(), "test-events")
	require.NoError(t, psA.StartSubscriber(hubA))
	require.NoError(t, psB.StartSubscriber(hubB))
	defer psA.Stop()
	defer psB.Stop()
	hubA.SetRedisPubSub(psA)
	hubB.SetRedisPubSub(psB)

	onA := testClient(hubA, "alice")
	onB := testClient(hubB, "alice")
	hubA.Register(onA)
	hubB.Register(onB)

	hubA.Publish(context.Background(), "alice", types.ChatEvent{Type: types.EventAIResponse, ChatID: "c1"})

	local := receive(t, onA)
	assert.Equal(t, "user:alice", local.Channel)

	remote := receive(t, onB)
	assert.Equal(t, "user:alice", remote.Channel)
	var event types.ChatEvent
	require.NoError(t, json.Unmarshal(remote.Payload.(json.RawMessage), &event))
	assert.Equal(t, types.EventAIResponse, event.Type)

	assertSilent(t, onA)
}
