package models

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted turn of a conversation.
type Message struct {
	ID             string    `json:"id" bson:"-"`
	UserID         string    `json:"userId" bson:"user_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	Role           string    `json:"role" bson:"role"`
	Text           string    `json:"text" bson:"text"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

// NormalizeRole maps historical role spellings onto RoleUser or RoleAssistant.
// It reports false for anything else.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant, "ai":
		return RoleAssistant, true
	default:
		return "", false
	}
}

var ErrInvalidMessage = errors.New("models: message requires userId, conversationId, a known role and text")

// Normalize validates the fixed message fields, canonicalises the role and
// stamps now (millisecond precision, UTC) when Timestamp is unset.
func (m Message) Normalize(now time.Time) (Message, error) {
	m.UserID = strings.TrimSpace(m.UserID)
	m.ConversationID = strings.TrimSpace(m.ConversationID)

	role, ok := NormalizeRole(m.Role)
	if !ok || m.UserID == "" || m.ConversationID == "" || strings.TrimSpace(m.Text) == "" {
		return Message{}, ErrInvalidMessage
	}
	m.Role = role

	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.Timestamp = m.Timestamp.UTC().Truncate(time.Millisecond)

	return m, nil
}
