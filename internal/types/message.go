package types

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageStatus is the delivery state of a user message. The order of the
// pipeline is sending -> delivered -> sent -> read.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusDelivered MessageStatus = "delivered"
	StatusSent      MessageStatus = "sent"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusDelivered: 1,
	StatusSent:      2,
	StatusRead:      3,
}

// Rank returns the position of s in the pipeline, or -1 when unknown.
func (s MessageStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// Before reports whether s comes strictly earlier in the pipeline than o.
func (s MessageStatus) Before(o MessageStatus) bool {
	return s.Rank() < o.Rank()
}

const (
	AssistantUserID  = "ai-assistant"
	MaxMessageLength = 4000
)

type Message struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chatId"`
	UserID    string         `json:"userId"`
	Content   string         `json:"content"`
	Role      Role           `json:"role"`
	Timestamp string         `json:"timestamp"`
	Status    *MessageStatus `json:"status,omitempty"`
	EditedAt  *string        `json:"editedAt,omitempty"`
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// CurrentStatus returns the status or "" when none is set.
func (m Message) CurrentStatus() MessageStatus {
	if m.Status == nil {
		return ""
	}
	return *m.Status
}

func StatusPtr(s MessageStatus) *MessageStatus {
	return &s
}

func NewMessageID() string {
	return "msg_" + ulid.Make().String()
}

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
