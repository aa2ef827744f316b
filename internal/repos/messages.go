package repos

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	MessagesKeyPrefix = "dengue_chat_messages_"

	searchConcurrency = 8
)

// MessageRepo persists the message list of every chat. It never returns
// errors: storage failures are logged and degrade to empty results.
type MessageRepo interface {
	Save(ctx context.Context, chatID string, msgs []types.Message)
	Load(ctx context.Context, chatID string) []types.Message
	Clear(ctx context.Context, chatID string)
	ClearAll(ctx context.Context)
	ListChatIDsWithMessages(ctx context.Context) []string
	Search(ctx context.Context, term string) map[string][]types.Message
	ChatHasMatch(ctx context.Context, chatID, term string) bool
}

type messageRepo struct {
	store kv.Store
	log   *logger.Logger
}

func NewMessageRepo(store kv.Store, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{
		store: store,
		log:   baseLog.With("repo", "MessageRepo"),
	}
}

func messagesKey(chatID string) string {
	return MessagesKeyPrefix + chatID
}

func (mr *messageRepo) Save(ctx context.Context, chatID string, msgs []types.Message) {
	if msgs == nil {
		msgs = []types.Message{}
	}
	data, err := encodeEnvelope(msgs)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("encode").Inc()
		mr.log.Error("failed to encode messages", "chatID", chatID, "error", err)
		return
	}
	if err := mr.store.Set(ctx, messagesKey(chatID), data); err != nil {
		metrics.StorageFailures.WithLabelValues("save").Inc()
		mr.log.Error("failed to save messages, dropping write", "chatID", chatID, "count", len(msgs), "error", err)
		return
	}
	mr.log.Debug("saved messages", "chatID", chatID, "count", len(msgs))
}

func (mr *messageRepo) Load(ctx context.Context, chatID string) []types.Message {
	data, ok, err := mr.store.Get(ctx, messagesKey(chatID))
	if err != nil {
		metrics.StorageFailures.WithLabelValues("load").Inc()
		mr.log.Error("failed to load messages", "chatID", chatID, "error", err)
		return []types.Message{}
	}
	if !ok {
		return []types.Message{}
	}
	items, version, err := decodeEnvelope(data)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("decode").Inc()
		mr.log.Warn("stored messages are corrupt, treating as empty", "chatID", chatID, "version", version, "error", err)
		return []types.Message{}
	}
	msgs := make([]types.Message, 0, len(items))
	for i, raw := range items {
		var m types.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			mr.log.Warn("dropping unreadable message", "chatID", chatID, "index", i, "error", err)
			continue
		}
		if !normalizeMessage(&m, chatID) {
			mr.log.Warn("dropping malformed message", "chatID", chatID, "index", i, "messageID", m.ID)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// normalizeMessage validates a decoded message and coerces recoverable
// fields. It reports false when the message must be dropped.
func normalizeMessage(m *types.Message, chatID string) bool {
	if m.ID == "" || !m.Role.Valid() || m.Timestamp == "" {
		return false
	}
	if _, err := types.ParseTimestamp(m.Timestamp); err != nil {
		return false
	}
	if m.ChatID == "" {
		m.ChatID = chatID
	}
	if m.Status != nil && !m.Status.Valid() {
		if m.IsUser() {
			m.Status = types.StatusPtr(types.StatusSent)
		} else {
			m.Status = nil
		}
	}
	if m.EditedAt != nil && *m.EditedAt == "" {
		m.EditedAt = nil
	}
	return true
}

func (mr *messageRepo) Clear(ctx context.Context, chatID string) {
	if err := mr.store.Delete(ctx, messagesKey(chatID)); err != nil {
		metrics.StorageFailures.WithLabelValues("clear").Inc()
		mr.log.Error("failed to clear messages", "chatID", chatID, "error", err)
	}
}

func (mr *messageRepo) ClearAll(ctx context.Context) {
	for _, chatID := range mr.ListChatIDsWithMessages(ctx) {
		mr.Clear(ctx, chatID)
	}
}

func (mr *messageRepo) ListChatIDsWithMessages(ctx context.Context) []string {
	keys, err := mr.store.Keys(ctx, MessagesKeyPrefix)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("list").Inc()
		mr.log.Error("failed to list chats with messages", "error", err)
		return []string{}
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, MessagesKeyPrefix))
	}
	sort.Strings(ids)
	return ids
}

// Search does a case-insensitive substring match over every stored message.
// Chats without a match are absent from the result.
func (mr *messageRepo) Search(ctx context.Context, term string) map[string][]types.Message {
	results := make(map[string][]types.Message)
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return results
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for _, chatID := range mr.ListChatIDsWithMessages(ctx) {
		chatID := chatID
		g.Go(func() error {
			matches := matchMessages(mr.Load(gctx, chatID), needle)
			if len(matches) == 0 {
				return nil
			}
			mu.Lock()
			results[chatID] = matches
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (mr *messageRepo) ChatHasMatch(ctx context.Context, chatID, term string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return false
	}
	return len(matchMessages(mr.Load(ctx, chatID), needle)) > 0
}

func matchMessages(msgs []types.Message, needle string) []types.Message {
	var out []types.Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	return out
}
