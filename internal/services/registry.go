package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/repos"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	titleMaxLength  = 35
	titleMinWordCut = 20
	titleEllipsis   = "..."
)

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// ChatRegistry owns the ordered chat list of one user. New chats go first and
// activity never reorders the list.
type ChatRegistry interface {
	List(ctx context.Context) []types.Chat
	Get(ctx context.Context, chatID string) (types.Chat, bool)
	Create(ctx context.Context) types.Chat
	Rename(ctx context.Context, chatID, name string) (*types.Chat, error)
	AutoRenameFromFirstMessage(ctx context.Context, chatID, content string) (*types.Chat, bool)
	// Delete removes the chat and returns the id that should be active next.
	Delete(ctx context.Context, chatID, activeID string) (string, bool)
	UpdateLastMessage(ctx context.Context, chatID, content string, ts time.Time) *types.Chat
}

type chatRegistry struct {
	mu   sync.Mutex
	repo repos.RegistryRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewChatRegistry(repo repos.RegistryRepo, baseLog *logger.Logger, now func() time.Time) ChatRegistry {
	if now == nil {
		now = time.Now
	}
	return &chatRegistry{
		repo: repo,
		log:  baseLog.With("service", "ChatRegistry"),
		now:  now,
	}
}

// loadLocked returns the stored chats, seeding the default chat when the
// registry is empty.
func (cr *chatRegistry) loadLocked(ctx context.Context) []types.Chat {
	chats := cr.repo.Load(ctx)
	if len(chats) == 0 {
		cr.log.Debug("registry empty, seeding default chat")
		chats = []types.Chat{types.AssistantChat(cr.now())}
		cr.repo.Save(ctx, chats)
	}
	return chats
}

func (cr *chatRegistry) List(ctx context.Context) []types.Chat {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.loadLocked(ctx)
}

func (cr *chatRegistry) Get(ctx context.Context, chatID string) (types.Chat, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	for _, c := range cr.loadLocked(ctx) {
		if c.ID == chatID {
			return c, true
		}
	}
	return types.Chat{}, false
}

func (cr *chatRegistry) Create(ctx context.Context) types.Chat {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	chats := cr.loadLocked(ctx)
	chat := types.NewChat(cr.now())
	chats = append([]types.Chat{chat}, chats...)
	cr.repo.Save(ctx, chats)
	cr.log.Info("created chat", "chatID", chat.ID)
	return chat
}

// update applies fn to the chat with the given id and saves the list when fn
// reports a change. It returns nil when the chat does not exist.
func (cr *chatRegistry) update(ctx context.Context, chatID string, fn func(c *types.Chat) bool) (*types.Chat, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	chats := cr.loadLocked(ctx)
	for i := range chats {
		if chats[i].ID != chatID {
			continue
		}
		changed := fn(&chats[i])
		if changed {
			cr.repo.Save(ctx, chats)
		}
		out := chats[i]
		return &out, changed
	}
	return nil, false
}

func (cr *chatRegistry) Rename(ctx context.Context, chatID, name string) (*types.Chat, error) {
	clean, err := ValidateChatName(name)
	if err != nil {
		return nil, err
	}
	chat, _ := cr.update(ctx, chatID, func(c *types.Chat) bool {
		if c.Name == clean {
			return false
		}
		c.Name = clean
		return true
	})
	if chat == nil {
		cr.log.Debug("rename of unknown chat ignored", "chatID", chatID)
	}
	return chat, nil
}

func (cr *chatRegistry) AutoRenameFromFirstMessage(ctx context.Context, chatID, content string) (*types.Chat, bool) {
	title := DeriveTitle(content)
	if title == "" {
		return nil, false
	}
	chat, changed := cr.update(ctx, chatID, func(c *types.Chat) bool {
		if !c.HasDefaultName() {
			return false
		}
		c.Name = title
		return true
	})
	if changed {
		cr.log.Debug("auto-renamed chat", "chatID", chatID, "name", title)
	}
	return chat, changed
}

func (cr *chatRegistry) Delete(ctx context.Context, chatID, activeID string) (string, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	chats := cr.loadLocked(ctx)
	idx := -1
	for i, c := range chats {
		if c.ID == chatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return activeID, false
	}
	remaining := append(chats[:idx:idx], chats[idx+1:]...)
	if len(remaining) == 0 {
		remaining = []types.Chat{types.AssistantChat(cr.now())}
		cr.log.Info("deleted last chat, synthesized default", "chatID", chatID)
	}
	cr.repo.Save(ctx, remaining)

	next := activeID
	if activeID == chatID || !containsChat(remaining, activeID) {
		pos := idx
		if pos > len(remaining)-1 {
			pos = len(remaining) - 1
		}
		next = remaining[pos].ID
	}
	cr.log.Info("deleted chat", "chatID", chatID, "activeID", next)
	return next, true
}

func (cr *chatRegistry) UpdateLastMessage(ctx context.Context, chatID, content string, ts time.Time) *types.Chat {
	chat, _ := cr.update(ctx, chatID, func(c *types.Chat) bool {
		t := ts.UTC()
		c.LastMessage = content
		c.LastMessageTime = &t
		return true
	})
	return chat
}

func containsChat(chats []types.Chat, id string) bool {
	for _, c := range chats {
		if c.ID == id {
			return true
		}
	}
	return false
}

// DeriveTitle turns the first message of a chat into its name. Content longer
// than 35 characters is cut at the last space past position 20, or hard-cut,
// and gets an ellipsis.
func DeriveTitle(content string) string {
	clean := strings.TrimSpace(newlines.Replace(content))
	if clean == "" {
		return ""
	}
	runes := []rune(clean)
	if len(runes) <= titleMaxLength {
		return clean
	}
	cut := string(runes[:titleMaxLength])
	if i := strings.LastIndex(cut, " "); i >= 0 && len([]rune(cut[:i])) > titleMinWordCut {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + titleEllipsis
}
