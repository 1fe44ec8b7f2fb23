package auth

import (
	"context"
	"sync"

	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
)

// MemoryStore is a process-local UserStore keyed by normalized email.
type MemoryStore struct {
	mu           sync.RWMutex
	usersByEmail map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{usersByEmail: make(map[string]models.User)}
}

func (m *MemoryStore) InsertUser(ctx context.Context, user models.User) error {
	_ = ctx

	key := NormalizeEmail(user.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByEmail[key]; exists {
		return ErrDuplicateEmail
	}
	m.usersByEmail[key] = user

	return nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	_ = ctx

	m.mu.RLock()
	user, ok := m.usersByEmail[NormalizeEmail(email)]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return &user, nil
}
