package services

import (
	"context"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/repos"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const AssistantPlaceholderReply = "Esta é uma resposta de exemplo. A integração com o backend será adicionada aqui."

// StatusTimings are the delays, relative to send time, of every step of the
// simulated delivery pipeline.
type StatusTimings struct {
	Delivered time.Duration
	Sent      time.Duration
	Reply     time.Duration
	Read      time.Duration
}

func DefaultStatusTimings() StatusTimings {
	return StatusTimings{
		Delivered: 1000 * time.Millisecond,
		Sent:      1500 * time.Millisecond,
		Reply:     2000 * time.Millisecond,
		Read:      2500 * time.Millisecond,
	}
}

// GenerateAssistantReply produces the placeholder assistant answer.
func GenerateAssistantReply(userContent string) string {
	_ = userContent
	return AssistantPlaceholderReply
}

// LifecycleConfig wires a MessageLifecycle for one user.
type LifecycleConfig struct {
	UserID    string
	Messages  repos.MessageRepo
	Registry  ChatRegistry
	Scheduler Scheduler
	Notifier  Notifier
	Timings   StatusTimings
	Log       *logger.Logger
	Now       func() time.Time
}

// MessageLifecycle mutates the message lists of one user. Every change to a
// chat's list runs through apply, which holds that chat's lock across the
// load, the transition and the save.
type MessageLifecycle struct {
	userID    string
	messages  repos.MessageRepo
	registry  ChatRegistry
	scheduler Scheduler
	notifier  Notifier
	timings   StatusTimings
	log       *logger.Logger
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	stateMu sync.Mutex
	// pending holds, per chat, the user messages still waiting for a reply.
	pending map[string]map[string]struct{}
	closed  bool
}

func NewMessageLifecycle(cfg LifecycleConfig) *MessageLifecycle {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	if cfg.Timings == (StatusTimings{}) {
		cfg.Timings = DefaultStatusTimings()
	}
	return &MessageLifecycle{
		userID:    cfg.UserID,
		messages:  cfg.Messages,
		registry:  cfg.Registry,
		scheduler: cfg.Scheduler,
		notifier:  cfg.Notifier,
		timings:   cfg.Timings,
		log:       cfg.Log.With("service", "MessageLifecycle", "userID", cfg.UserID),
		now:       cfg.Now,
		locks:     make(map[string]*sync.Mutex),
		pending:   make(map[string]map[string]struct{}),
	}
}

func taskKey(chatID, messageID string) string {
	return chatID + ":" + messageID
}

func (ml *MessageLifecycle) chatLock(chatID string) *sync.Mutex {
	ml.locksMu.Lock()
	defer ml.locksMu.Unlock()
	mu, ok := ml.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		ml.locks[chatID] = mu
	}
	return mu
}

// apply is the per-chat reducer. fn gets the current list and returns the next
// one plus whether anything changed; only changed lists are saved.
func (ml *MessageLifecycle) apply(ctx context.Context, chatID string, fn func([]types.Message) ([]types.Message, bool)) []types.Message {
	mu := ml.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()
	current := ml.messages.Load(ctx, chatID)
	next, changed := fn(current)
	if !changed {
		return current
	}
	ml.messages.Save(ctx, chatID, next)
	return next
}

func (ml *MessageLifecycle) publish(ctx context.Context, event types.ChatEvent) {
	ml.notifier.Publish(ctx, ml.userID, event)
}

// Messages returns the stored list of a chat.
func (ml *MessageLifecycle) Messages(ctx context.Context, chatID string) []types.Message {
	return ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		return msgs, false
	})
}

// InitChat writes an empty list for a newly created chat.
func (ml *MessageLifecycle) InitChat(ctx context.Context, chatID string) {
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		return []types.Message{}, true
	})
}

func (ml *MessageLifecycle) IsTyping(chatID string) bool {
	ml.stateMu.Lock()
	defer ml.stateMu.Unlock()
	return len(ml.pending[chatID]) > 0
}

func (ml *MessageLifecycle) isClosed() bool {
	ml.stateMu.Lock()
	defer ml.stateMu.Unlock()
	return ml.closed
}

// setPending records or clears an outstanding reply and reports whether the
// chat's typing flag flipped.
func (ml *MessageLifecycle) setPending(chatID, messageID string, on bool) bool {
	ml.stateMu.Lock()
	defer ml.stateMu.Unlock()
	before := len(ml.pending[chatID]) > 0
	set := ml.pending[chatID]
	if on {
		if set == nil {
			set = make(map[string]struct{})
			ml.pending[chatID] = set
		}
		set[messageID] = struct{}{}
	} else if set != nil {
		delete(set, messageID)
		if len(set) == 0 {
			delete(ml.pending, chatID)
		}
	}
	return before != (len(ml.pending[chatID]) > 0)
}

func (ml *MessageLifecycle) publishTyping(ctx context.Context, chatID string) {
	typing := ml.IsTyping(chatID)
	ml.publish(ctx, types.ChatEvent{Type: types.EventTyping, ChatID: chatID, IsTyping: &typing})
}

// SendUserMessage appends a user message in status sending and schedules the
// rest of its pipeline. content must already be validated.
func (ml *MessageLifecycle) SendUserMessage(ctx context.Context, chatID, content string) types.Message {
	now := ml.now()
	msg := types.Message{
		ID:        types.NewMessageID(),
		ChatID:    chatID,
		UserID:    ml.userID,
		Content:   content,
		Role:      types.RoleUser,
		Timestamp: types.FormatTimestamp(now),
		Status:    types.StatusPtr(types.StatusSending),
	}
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		return append(msgs, msg), true
	})
	metrics.MessagesSent.Inc()
	ml.log.Debug("user message appended", "chatID", chatID, "messageID", msg.ID)
	ml.publish(ctx, types.ChatEvent{Type: types.EventMessage, ChatID: chatID, MessageID: msg.ID, Message: &msg})

	if chat, renamed := ml.registry.AutoRenameFromFirstMessage(ctx, chatID, content); renamed {
		ml.publish(ctx, types.ChatEvent{Type: types.EventChatUpdated, ChatID: chatID, Chat: chat})
	}
	if chat := ml.registry.UpdateLastMessage(ctx, chatID, content, now); chat != nil {
		ml.publish(ctx, types.ChatEvent{Type: types.EventChatUpdated, ChatID: chatID, Chat: chat})
	}
	if ml.setPending(chatID, msg.ID, true) {
		ml.publishTyping(ctx, chatID)
	}

	key := taskKey(chatID, msg.ID)
	// Timer callbacks outlive the request.
	bg := context.WithoutCancel(ctx)
	ml.scheduler.Schedule(key, ml.timings.Delivered, func() {
		ml.advanceStatus(bg, chatID, msg.ID, types.StatusDelivered)
	})
	ml.scheduler.Schedule(key, ml.timings.Sent, func() {
		ml.advanceStatus(bg, chatID, msg.ID, types.StatusSent)
	})
	ml.scheduler.Schedule(key, ml.timings.Reply, func() {
		ml.appendReply(bg, chatID, msg.ID, content)
	})
	ml.scheduler.Schedule(key, ml.timings.Read, func() {
		ml.advanceStatus(bg, chatID, msg.ID, types.StatusRead)
	})
	return msg
}

// advanceStatus moves a user message forward. Regressions and missing
// messages are ignored.
func (ml *MessageLifecycle) advanceStatus(ctx context.Context, chatID, messageID string, to types.MessageStatus) {
	if ml.isClosed() {
		return
	}
	applied := false
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		for i := range msgs {
			if msgs[i].ID != messageID || !msgs[i].IsUser() {
				continue
			}
			if !msgs[i].CurrentStatus().Before(to) {
				return msgs, false
			}
			msgs[i].Status = types.StatusPtr(to)
			applied = true
			return msgs, true
		}
		return msgs, false
	})
	if !applied {
		return
	}
	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	ml.publish(ctx, types.ChatEvent{Type: types.EventMessageStatus, ChatID: chatID, MessageID: messageID, Status: to})
}

// appendReply adds the assistant answer for messageID, as long as that user
// message still exists.
func (ml *MessageLifecycle) appendReply(ctx context.Context, chatID, messageID, userContent string) {
	if ml.isClosed() {
		return
	}
	now := ml.now()
	reply := types.Message{
		ID:        types.NewMessageID(),
		ChatID:    chatID,
		UserID:    types.AssistantUserID,
		Content:   GenerateAssistantReply(userContent),
		Role:      types.RoleAssistant,
		Timestamp: types.FormatTimestamp(now),
	}
	appended := false
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		for _, m := range msgs {
			if m.ID == messageID {
				appended = true
				return append(msgs, reply), true
			}
		}
		return msgs, false
	})
	if ml.setPending(chatID, messageID, false) {
		ml.publishTyping(ctx, chatID)
	}
	if !appended {
		ml.log.Debug("reply dropped, user message is gone", "chatID", chatID, "messageID", messageID)
		return
	}
	metrics.AssistantReplies.Inc()
	ml.publish(ctx, types.ChatEvent{Type: types.EventAIResponse, ChatID: chatID, MessageID: reply.ID, Message: &reply})
	if chat := ml.registry.UpdateLastMessage(ctx, chatID, reply.Content, now); chat != nil {
		ml.publish(ctx, types.ChatEvent{Type: types.EventChatUpdated, ChatID: chatID, Chat: chat})
	}
}

// EditMessage replaces the content of a user message in place. The status
// pipeline is not restarted. It returns nil when nothing was edited.
func (ml *MessageLifecycle) EditMessage(ctx context.Context, chatID, messageID, content string) *types.Message {
	var edited *types.Message
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			if !msgs[i].IsUser() {
				return msgs, false
			}
			ts := types.FormatTimestamp(ml.now())
			msgs[i].Content = content
			msgs[i].EditedAt = &ts
			m := msgs[i]
			edited = &m
			return msgs, true
		}
		return msgs, false
	})
	if edited == nil {
		ml.log.Debug("edit of unknown message ignored", "chatID", chatID, "messageID", messageID)
		return nil
	}
	ml.publish(ctx, types.ChatEvent{Type: types.EventMessageEdited, ChatID: chatID, MessageID: messageID, Message: edited})
	return edited
}

// DeleteMessage removes a user message and cancels its pending transitions.
func (ml *MessageLifecycle) DeleteMessage(ctx context.Context, chatID, messageID string) bool {
	ml.scheduler.Cancel(taskKey(chatID, messageID))
	if ml.setPending(chatID, messageID, false) {
		ml.publishTyping(ctx, chatID)
	}
	deleted := false
	ml.apply(ctx, chatID, func(msgs []types.Message) ([]types.Message, bool) {
		for i, m := range msgs {
			if m.ID != messageID || !m.IsUser() {
				continue
			}
			out := make([]types.Message, 0, len(msgs)-1)
			out = append(out, msgs[:i]...)
			out = append(out, msgs[i+1:]...)
			deleted = true
			return out, true
		}
		return msgs, false
	})
	if !deleted {
		ml.log.Debug("delete of unknown message ignored", "chatID", chatID, "messageID", messageID)
		return false
	}
	ml.publish(ctx, types.ChatEvent{Type: types.EventMessageDeleted, ChatID: chatID, MessageID: messageID})
	return true
}

// PurgeChat cancels every pending transition of a chat and clears its list.
func (ml *MessageLifecycle) PurgeChat(ctx context.Context, chatID string) {
	ml.scheduler.CancelPrefix(chatID + ":")
	ml.stateMu.Lock()
	delete(ml.pending, chatID)
	ml.stateMu.Unlock()

	mu := ml.chatLock(chatID)
	mu.Lock()
	ml.messages.Clear(ctx, chatID)
	mu.Unlock()
}

// Close cancels all pending transitions. Late callbacks become no-ops.
func (ml *MessageLifecycle) Close() {
	ml.stateMu.Lock()
	ml.closed = true
	ml.pending = make(map[string]map[string]struct{})
	ml.stateMu.Unlock()
	ml.scheduler.CancelAll()
}
