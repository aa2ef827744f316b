package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultChatName   = "Novo Chat"
	DefaultChatAvatar = "/assets/branding/denguegen-icon.png"

	AssistantChatID          = "ai-assistant"
	AssistantChatName        = "Dengue-Gen AI"
	AssistantChatLastMessage = "Olá! Como posso ajudá-lo hoje?"
	WelcomeMessageContent    = "Olá! Sou a Dengue-Gen AI. Como posso ajudá-lo hoje?"
)

type Chat struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Avatar          string     `json:"avatar,omitempty"`
	LastMessage     string     `json:"lastMessage,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	// UnreadCount has no update rule yet; it keeps its initial value.
	UnreadCount int  `json:"unreadCount"`
	IsOnline    bool `json:"isOnline"`
	IsTyping    bool `json:"isTyping,omitempty"`
}

func (c Chat) HasDefaultName() bool {
	return c.Name == DefaultChatName
}

// NewChat returns a user-created chat with the placeholder name.
func NewChat(now time.Time) Chat {
	ts := now.UTC()
	return Chat{
		ID:              uuid.NewString(),
		Name:            DefaultChatName,
		Avatar:          DefaultChatAvatar,
		LastMessageTime: &ts,
		UnreadCount:     0,
		IsOnline:        true,
	}
}

// AssistantChat is the system-provided chat that seeds an empty registry.
func AssistantChat(now time.Time) Chat {
	ts := now.UTC()
	return Chat{
		ID:              AssistantChatID,
		Name:            AssistantChatName,
		Avatar:          DefaultChatAvatar,
		LastMessage:     AssistantChatLastMessage,
		LastMessageTime: &ts,
		UnreadCount:     0,
		IsOnline:        true,
	}
}

// WelcomeMessage is shown for a chat that has no stored messages. It is never persisted.
func WelcomeMessage(chatID string, now time.Time) Message {
	return Message{
		ID:        "welcome_" + chatID,
		ChatID:    chatID,
		UserID:    AssistantUserID,
		Content:   WelcomeMessageContent,
		Role:      RoleAssistant,
		Timestamp: FormatTimestamp(now),
		Status:    StatusPtr(StatusRead),
	}
}
