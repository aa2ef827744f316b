package services

import (
	"context"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/repos"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

type SessionState string

const (
	StateUninitialized  SessionState = "uninitialized"
	StateLoadingStorage SessionState = "loading-storage"
	StateReady          SessionState = "ready"
	StateClosed         SessionState = "closed"
)

// SessionConfig wires a Session. Store must already be scoped to the user.
type SessionConfig struct {
	User      types.User
	Store     kv.Store
	Scheduler Scheduler
	Notifier  Notifier
	Timings   StatusTimings
	Log       *logger.Logger
	Now       func() time.Time
}

// Snapshot is what the chat view renders.
type Snapshot struct {
	State        SessionState    `json:"state"`
	User         types.User      `json:"user"`
	Chats        []types.Chat    `json:"chats"`
	ActiveChatID string          `json:"activeChatId"`
	ActiveChat   *types.Chat     `json:"activeChat,omitempty"`
	Messages     []types.Message `json:"messages"`
	IsTyping     bool            `json:"isTyping"`
}

// Session coordinates the chat state of one authenticated user. It is built
// explicitly by the SessionManager and torn down on logout.
type Session struct {
	mu       sync.RWMutex
	state    SessionState
	activeID string

	user      types.User
	registry  ChatRegistry
	lifecycle *MessageLifecycle
	search    *SearchIndex
	prefs     repos.PreferencesRepo
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	log := cfg.Log.With("service", "Session", "userID", cfg.User.ID)
	messages := repos.NewMessageRepo(cfg.Store, cfg.Log)
	prefs := repos.NewPreferencesRepo(cfg.Store, cfg.Log)
	registry := NewChatRegistry(repos.NewRegistryRepo(cfg.Store, cfg.Log), cfg.Log, cfg.Now)
	lifecycle := NewMessageLifecycle(LifecycleConfig{
		UserID:    cfg.User.ID,
		Messages:  messages,
		Registry:  registry,
		Scheduler: cfg.Scheduler,
		Notifier:  cfg.Notifier,
		Timings:   cfg.Timings,
		Log:       cfg.Log,
		Now:       cfg.Now,
	})
	return &Session{
		state:     StateUninitialized,
		user:      cfg.User,
		registry:  registry,
		lifecycle: lifecycle,
		search:    NewSearchIndex(registry, messages, prefs, cfg.Log),
		prefs:     prefs,
		notifier:  cfg.Notifier,
		log:       log,
		now:       cfg.Now,
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) User() types.User {
	return s.user
}

// Init loads the registry, seeding the default chat when needed, and makes
// the first chat active.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrSessionClosed
	}
	s.state = StateLoadingStorage
	s.log.Debug("loading session storage")
	chats := s.registry.List(ctx)
	s.activeID = chats[0].ID
	s.lifecycle.Messages(ctx, s.activeID)
	s.state = StateReady
	s.log.Info("session ready", "chats", len(chats), "activeChatID", s.activeID)
	return nil
}

func (s *Session) ready() error {
	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionNotReady
	}
}

func (s *Session) withTyping(chats []types.Chat) []types.Chat {
	for i := range chats {
		chats[i].IsTyping = s.lifecycle.IsTyping(chats[i].ID)
	}
	return chats
}

// viewMessages returns the stored messages, or the welcome placeholder for an
// empty chat.
func (s *Session) viewMessages(ctx context.Context, chatID string) []types.Message {
	msgs := s.lifecycle.Messages(ctx, chatID)
	if len(msgs) == 0 {
		return []types.Message{types.WelcomeMessage(chatID, s.now())}
	}
	return msgs
}

func (s *Session) Chats(ctx context.Context) ([]types.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.withTyping(s.registry.List(ctx)), nil
}

func (s *Session) FilterChats(ctx context.Context, query string) ([]types.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.withTyping(s.search.FilterChats(ctx, query)), nil
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return Snapshot{State: s.state, User: s.user}, err
	}
	return s.snapshotLocked(ctx), nil
}

func (s *Session) snapshotLocked(ctx context.Context) Snapshot {
	chats := s.withTyping(s.registry.List(ctx))
	snap := Snapshot{
		State:        s.state,
		User:         s.user,
		Chats:        chats,
		ActiveChatID: s.activeID,
		Messages:     s.viewMessages(ctx, s.activeID),
		IsTyping:     s.lifecycle.IsTyping(s.activeID),
	}
	for i := range chats {
		if chats[i].ID == s.activeID {
			c := chats[i]
			snap.ActiveChat = &c
			break
		}
	}
	return snap
}

func (s *Session) SelectChat(ctx context.Context, chatID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return Snapshot{}, err
	}
	if _, ok := s.registry.Get(ctx, chatID); !ok {
		return Snapshot{}, ErrChatNotFound
	}
	s.activeID = chatID
	return s.snapshotLocked(ctx), nil
}

// Messages returns the view of one chat without changing the active chat.
func (s *Session) Messages(ctx context.Context, chatID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, ok := s.registry.Get(ctx, chatID); !ok {
		return nil, ErrChatNotFound
	}
	return s.viewMessages(ctx, chatID), nil
}

func (s *Session) CreateChat(ctx context.Context) (types.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return types.Chat{}, err
	}
	chat := s.registry.Create(ctx)
	s.lifecycle.InitChat(ctx, chat.ID)
	s.activeID = chat.ID
	s.notifier.Publish(ctx, s.user.ID, types.ChatEvent{Type: types.EventChatUpdated, ChatID: chat.ID, Chat: &chat})
	return chat, nil
}

func (s *Session) RenameChat(ctx context.Context, chatID, name string) (*types.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	chat, err := s.registry.Rename(ctx, chatID, name)
	if err != nil || chat == nil {
		return chat, err
	}
	s.notifier.Publish(ctx, s.user.ID, types.ChatEvent{Type: types.EventChatUpdated, ChatID: chatID, Chat: chat})
	return chat, nil
}

// DeleteChat removes a chat and its messages once confirmed. It returns the id
// of the chat that is active afterwards.
func (s *Session) DeleteChat(ctx context.Context, chatID string, confirmed bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return "", err
	}
	if !confirmed {
		return s.activeID, ErrConfirmationRequired
	}
	if _, ok := s.registry.Get(ctx, chatID); !ok {
		return s.activeID, nil
	}
	s.lifecycle.PurgeChat(ctx, chatID)
	next, _ := s.registry.Delete(ctx, chatID, s.activeID)
	s.activeID = next
	s.notifier.Publish(ctx, s.user.ID, types.ChatEvent{Type: types.EventChatDeleted, ChatID: chatID})
	return next, nil
}

func (s *Session) resolveChat(ctx context.Context, chatID string) (string, error) {
	if chatID == "" {
		chatID = s.activeID
	}
	if _, ok := s.registry.Get(ctx, chatID); !ok {
		return "", ErrChatNotFound
	}
	return chatID, nil
}

// SendMessage validates content and hands it to the lifecycle controller. An
// empty chatID targets the active chat.
func (s *Session) SendMessage(ctx context.Context, chatID, content string) (types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return types.Message{}, err
	}
	clean, err := ValidateMessageContent(content)
	if err != nil {
		return types.Message{}, err
	}
	chatID, err = s.resolveChat(ctx, chatID)
	if err != nil {
		return types.Message{}, err
	}
	return s.lifecycle.SendUserMessage(ctx, chatID, clean), nil
}

// EditMessage returns nil without error when the message does not exist.
func (s *Session) EditMessage(ctx context.Context, chatID, messageID, content string) (*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	clean, err := ValidateMessageContent(content)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.EditMessage(ctx, chatID, messageID, clean), nil
}

func (s *Session) DeleteMessage(ctx context.Context, chatID, messageID string, confirmed bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	if !confirmed {
		return false, ErrConfirmationRequired
	}
	return s.lifecycle.DeleteMessage(ctx, chatID, messageID), nil
}

func (s *Session) IsTyping(chatID string) bool {
	return s.lifecycle.IsTyping(chatID)
}

func (s *Session) Suggest(ctx context.Context, query string) (Suggestions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return Suggestions{}, err
	}
	return s.search.Suggest(ctx, query), nil
}

func (s *Session) ChatHasMatch(ctx context.Context, chatID, query string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.search.ChatHasMatch(ctx, chatID, query), nil
}

func (s *Session) RecentSearches(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.search.RecentSearches(ctx), nil
}

func (s *Session) RecordSearch(ctx context.Context, term string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.search.RecordSearch(ctx, term), nil
}

func (s *Session) ClearRecentSearches(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.search.ClearRecentSearches(ctx)
	return nil
}

func (s *Session) OnboardingCompleted(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.prefs.OnboardingCompleted(ctx), nil
}

func (s *Session) CompleteOnboarding(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.prefs.SetOnboardingCompleted(ctx, true)
	return nil
}

// Close cancels all pending transitions. A closed session rejects every call.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.lifecycle.Close()
	s.state = StateClosed
	s.log.Info("session closed")
}
