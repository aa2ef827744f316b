package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	DefaultHistoryLimit = 50
	mockReplyTemplate   = `Esta é uma resposta mockada à sua mensagem: "%s". O backend FastAPI será integrado em breve!`
)

type HistoryPage struct {
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"hasMore"`
}

// MockChatService stands in for the generation backend behind /api/chat.
type MockChatService interface {
	Reply(ctx context.Context, chatID, content, userID string) (types.Message, types.Message, error)
	History(ctx context.Context, chatID string, limit, offset int) HistoryPage
}

type mockChatService struct {
	log   *logger.Logger
	delay time.Duration
	now   func() time.Time
}

func NewMockChatService(log *logger.Logger, delay time.Duration) MockChatService {
	return &mockChatService{
		log:   log.With("service", "MockChatService"),
		delay: delay,
		now:   time.Now,
	}
}

// Reply waits the simulated processing delay and returns the echoed user
// message with a canned answer. It stops early when ctx is done.
func (mc *mockChatService) Reply(ctx context.Context, chatID, content, userID string) (types.Message, types.Message, error) {
	if mc.delay > 0 {
		t := time.NewTimer(mc.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return types.Message{}, types.Message{}, ctx.Err()
		case <-t.C:
		}
	}
	now := mc.now()
	user := types.Message{
		ID:        types.NewMessageID(),
		ChatID:    chatID,
		UserID:    userID,
		Content:   content,
		Role:      types.RoleUser,
		Timestamp: types.FormatTimestamp(now),
		Status:    types.StatusPtr(types.StatusSent),
	}
	ai := types.Message{
		ID:        types.NewMessageID(),
		ChatID:    chatID,
		UserID:    types.AssistantUserID,
		Content:   fmt.Sprintf(mockReplyTemplate, content),
		Role:      types.RoleAssistant,
		Timestamp: types.FormatTimestamp(now),
		Status:    types.StatusPtr(types.StatusSent),
	}
	mc.log.Debug("mock reply", "chatID", chatID, "userID", userID)
	return user, ai, nil
}

func (mc *mockChatService) History(ctx context.Context, chatID string, limit, offset int) HistoryPage {
	now := mc.now()
	all := []types.Message{
		{
			ID:        "msg_1",
			ChatID:    chatID,
			UserID:    "user-123",
			Content:   "Olá! Como posso me proteger da dengue?",
			Role:      types.RoleUser,
			Timestamp: types.FormatTimestamp(now.Add(-60 * time.Second)),
			Status:    types.StatusPtr(types.StatusSent),
		},
		{
			ID:        "msg_2",
			ChatID:    chatID,
			UserID:    types.AssistantUserID,
			Content:   "Olá! Para se proteger da dengue, é importante eliminar água parada, usar repelente e instalar telas em janelas.",
			Role:      types.RoleAssistant,
			Timestamp: types.FormatTimestamp(now.Add(-30 * time.Second)),
			Status:    types.StatusPtr(types.StatusSent),
		},
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	start := offset
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return HistoryPage{
		Messages: all[start:end],
		Total:    len(all),
		HasMore:  offset+limit < len(all),
	}
}
