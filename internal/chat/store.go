package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
)

// MessageStore persists conversation turns. Reads filter by equality on
// user id (and conversation id when non-empty) and return turns in
// ascending timestamp order; no match is an empty slice, not an error.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessagesByUser(ctx context.Context, userID, conversationID string) ([]models.Message, error)
	// LatestMessage returns the newest turn of userID across all
	// conversations, or (nil, nil) when the user has none.
	LatestMessage(ctx context.Context, userID string) (*models.Message, error)
}

// MemoryStore keeps messages in process memory in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	_ = ctx

	normalized, err := msg.Normalize(m.now())
	if err != nil {
		return models.Message{}, err
	}
	normalized.ID = uuid.NewString()

	m.mu.Lock()
	m.messages = append(m.messages, normalized)
	m.mu.Unlock()

	return normalized, nil
}

func (m *MemoryStore) GetMessagesByUser(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	_ = ctx

	m.mu.RLock()
	result := make([]models.Message, 0)
	for _, msg := range m.messages {
		if msg.UserID != userID {
			continue
		}
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		result = append(result, msg)
	}
	m.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

func (m *MemoryStore) LatestMessage(ctx context.Context, userID string) (*models.Message, error) {
	messages, err := m.GetMessagesByUser(ctx, userID, "")
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	latest := messages[len(messages)-1]
	return &latest, nil
}
