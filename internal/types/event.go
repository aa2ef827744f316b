package types

type ChatEventType string

const (
	EventMessage        ChatEventType = "message"
	EventMessageStatus  ChatEventType = "message_status"
	EventMessageEdited  ChatEventType = "message_edited"
	EventMessageDeleted ChatEventType = "message_deleted"
	EventTyping         ChatEventType = "typing"
	EventAIResponse     ChatEventType = "ai_response"
	EventChatUpdated    ChatEventType = "chat_updated"
	EventChatDeleted    ChatEventType = "chat_deleted"
)

// ChatEvent is pushed to the owner's realtime channel after a state transition.
type ChatEvent struct {
	Type      ChatEventType `json:"type"`
	ChatID    string        `json:"chatId"`
	MessageID string        `json:"messageId,omitempty"`
	Status    MessageStatus `json:"status,omitempty"`
	IsTyping  *bool         `json:"isTyping,omitempty"`
	Message   *Message      `json:"message,omitempty"`
	Chat      *Chat         `json:"chat,omitempty"`
}
