package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/repos"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

type sessionFixture struct {
	sess     *Session
	sched    *manualScheduler
	notifier *recordingNotifier
	store    kv.Store
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := kv.Namespaced(kv.NewMemoryStore(), kv.UserNamespace(DemoUserID))
	sched := newManualScheduler()
	notifier := &recordingNotifier{}
	sess := NewSession(SessionConfig{
		User:      types.User{ID: DemoUserID, Name: DemoUserName, Email: DemoUserEmail},
		Store:     store,
		Scheduler: sched,
		Notifier:  notifier,
		Log:       logger.Nop(),
		Now:       fixedClock,
	})
	return &sessionFixture{sess: sess, sched: sched, notifier: notifier, store: store}
}

func TestSession_StateMachine(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	assert.Equal(t, StateUninitialized, f.sess.State())
	_, err := f.sess.Chats(ctx)
	assert.ErrorIs(t, err, ErrSessionNotReady)
	_, err = f.sess.SendMessage(ctx, "", "oi")
	assert.ErrorIs(t, err, ErrSessionNotReady)

	require.NoError(t, f.sess.Init(ctx))
	assert.Equal(t, StateReady, f.sess.State())
	require.NoError(t, f.sess.Init(ctx), "Init is idempotent")

	f.sess.Close()
	assert.Equal(t, StateClosed, f.sess.State())
	_, err = f.sess.Chats(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, f.sess.Init(ctx), ErrSessionClosed)
}

func TestSession_InitialSnapshotShowsWelcome(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))

	snap, err := f.sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AssistantChatID, snap.ActiveChatID)
	require.NotNil(t, snap.ActiveChat)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, types.WelcomeMessageContent, snap.Messages[0].Content)

	stored := repos.NewMessageRepo(f.store, logger.Nop()).Load(ctx, types.AssistantChatID)
	assert.Empty(t, stored, "the welcome message is never persisted")
}

// A new chat gets its title from the first question and ends up with the
// question and the answer, both settled.
func TestSession_EndToEndFirstQuestion(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))

	chat, err := f.sess.CreateChat(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultChatName, chat.Name)

	snap, err := f.sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, snap.ActiveChatID)

	sent, err := f.sess.SendMessage(ctx, "", "  Quais os sintomas?  ")
	require.NoError(t, err)
	assert.Equal(t, "Quais os sintomas?", sent.Content)
	assert.Equal(t, chat.ID, sent.ChatID)
	assert.True(t, f.sess.IsTyping(chat.ID))

	chats, err := f.sess.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Quais os sintomas?", chats[0].Name)
	assert.True(t, chats[0].IsTyping)

	f.sched.Advance(2500 * time.Millisecond)

	msgs, err := f.sess.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.StatusRead, msgs[0].CurrentStatus())
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	assert.False(t, f.sess.IsTyping(chat.ID))

	assert.Contains(t, f.notifier.Types(), types.EventAIResponse)
	assert.Contains(t, f.notifier.Types(), types.EventTyping)
}

func TestSession_SendValidation(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))

	_, err := f.sess.SendMessage(ctx, "", "   ")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, MsgEmptyMessage, vErr.Message)

	_, err = f.sess.SendMessage(ctx, "", strings.Repeat("a", types.MaxMessageLength+1))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, MsgMessageTooLong, vErr.Message)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sess.SendMessage(ctx, "", strings.Repeat("é", types.MaxMessageLength))
	assert.NoError(t, err, "the limit counts characters")

	_, err = f.sess.SendMessage(ctx, "missing", "oi")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSession_DestructiveActionsNeedConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))
	chat, err := f.sess.CreateChat(ctx)
	require.NoError(t, err)
	msg, err := f.sess.SendMessage(ctx, chat.ID, "oi")
	require.NoError(t, err)

	_, err = f.sess.DeleteMessage(ctx, chat.ID, msg.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	msgs, err := f.sess.Messages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.sess.DeleteChat(ctx, chat.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	chats, err := f.sess.Chats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	next, err := f.sess.DeleteChat(ctx, chat.ID, true)
	require.NoError(t, err)
	assert.Equal(t, types.AssistantChatID, next)
	assert.Zero(t, f.sched.Pending(), "deleting a chat cancels its transitions")

	f.sched.Advance(5 * time.Second)
	assert.Empty(t, repos.NewMessageRepo(f.store, logger.Nop()).Load(ctx, chat.ID))
}

func TestSession_SelectChat(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))
	_, err := f.sess.CreateChat(ctx)
	require.NoError(t, err)

	snap, err := f.sess.SelectChat(ctx, types.AssistantChatID)
	require.NoError(t, err)
	assert.Equal(t, types.AssistantChatID, snap.ActiveChatID)

	_, err = f.sess.SelectChat(ctx, "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSession_Onboarding(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.sess.Init(ctx))

	done, err := f.sess.OnboardingCompleted(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, f.sess.CompleteOnboarding(ctx))
	done, err = f.sess.OnboardingCompleted(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSessionManager_IsolatesUsers(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(SessionManagerConfig{
		Store:        kv.NewMemoryStore(),
		NewScheduler: func() Scheduler { return newManualScheduler() },
		Log:          logger.Nop(),
		Now:          fixedClock,
	})
	defer sm.CloseAll()

	alice, err := sm.Get(ctx, types.User{ID: "alice"})
	require.NoError(t, err)
	bob, err := sm.Get(ctx, types.User{ID: "bob"})
	require.NoError(t, err)

	_, err = alice.CreateChat(ctx)
	require.NoError(t, err)

	aliceChats, err := alice.Chats(ctx)
	require.NoError(t, err)
	bobChats, err := bob.Chats(ctx)
	require.NoError(t, err)
	assert.Len(t, aliceChats, 2)
	assert.Len(t, bobChats, 1)

	again, err := sm.Get(ctx, types.User{ID: "alice"})
	require.NoError(t, err)
	assert.Same(t, alice, again)

	sm.Drop("alice")
	assert.Equal(t, StateClosed, alice.State())
	_, ok := sm.Lookup("alice")
	assert.False(t, ok)

	revived, err := sm.Get(ctx, types.User{ID: "alice"})
	require.NoError(t, err)
	chats, err := revived.Chats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2, "stored chats survive a dropped session")

	_, err = sm.Get(ctx, types.User{})
	assert.ErrorIs(t, err, ErrSessionNotReady)
}
