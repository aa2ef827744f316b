package repos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const RegistryKey = "dengue_chat_registry"

// RegistryRepo persists the ordered chat list, independently of message bodies.
type RegistryRepo interface {
	Save(ctx context.Context, chats []types.Chat)
	// Load returns nil when nothing usable is stored.
	Load(ctx context.Context) []types.Chat
	Clear(ctx context.Context)
}

type registryRepo struct {
	store kv.Store
	log   *logger.Logger
}

func NewRegistryRepo(store kv.Store, baseLog *logger.Logger) RegistryRepo {
	return &registryRepo{
		store: store,
		log:   baseLog.With("repo", "RegistryRepo"),
	}
}

func (rr *registryRepo) Save(ctx context.Context, chats []types.Chat) {
	out := make([]types.Chat, len(chats))
	for i, c := range chats {
		c.IsTyping = false
		out[i] = c
	}
	data, err := encodeEnvelope(out)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("encode").Inc()
		rr.log.Error("failed to encode chat registry", "error", err)
		return
	}
	if err := rr.store.Set(ctx, RegistryKey, data); err != nil {
		metrics.StorageFailures.WithLabelValues("save").Inc()
		rr.log.Error("failed to save chat registry, dropping write", "count", len(chats), "error", err)
	}
}

func (rr *registryRepo) Load(ctx context.Context) []types.Chat {
	data, ok, err := rr.store.Get(ctx, RegistryKey)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("load").Inc()
		rr.log.Error("failed to load chat registry", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	items, version, err := decodeEnvelope(data)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("decode").Inc()
		rr.log.Warn("stored chat registry is corrupt, treating as empty", "version", version, "error", err)
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	chats := make([]types.Chat, 0, len(items))
	for i, raw := range items {
		var c types.Chat
		if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
			rr.log.Warn("dropping malformed chat entry", "index", i, "error", err)
			continue
		}
		if _, dup := seen[c.ID]; dup {
			rr.log.Warn("dropping duplicate chat entry", "chatID", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		if strings.TrimSpace(c.Name) == "" {
			c.Name = types.DefaultChatName
		}
		c.IsTyping = false
		chats = append(chats, c)
	}
	if len(chats) == 0 {
		return nil
	}
	return chats
}

func (rr *registryRepo) Clear(ctx context.Context) {
	if err := rr.store.Delete(ctx, RegistryKey); err != nil {
		metrics.StorageFailures.WithLabelValues("clear").Inc()
		rr.log.Error("failed to clear chat registry", "error", err)
	}
}
