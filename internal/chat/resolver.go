package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

// ConversationResolver picks the conversation an inbound turn belongs to.
type ConversationResolver interface {
	Resolve(ctx context.Context, userID, requested string) (string, error)
}

// ConversationRecorder is implemented by resolvers that need to observe
// every persisted turn.
type ConversationRecorder interface {
	Remember(ctx context.Context, userID, conversationID string) error
}

// NewConversationID mints "conv_<userId>_<epoch-millis>".
func NewConversationID(userID string, at time.Time) string {
	return fmt.Sprintf("conv_%s_%d", userID, at.UnixMilli())
}

// LatestConversationResolver continues the user's most recently written
// conversation when none is requested. A user with several open threads who
// omits the id is always appended to whichever thread was written last.
type LatestConversationResolver struct {
	store MessageStore
	now   func() time.Time
}

func NewLatestConversationResolver(store MessageStore) *LatestConversationResolver {
	return &LatestConversationResolver{store: store, now: time.Now}
}

func (r *LatestConversationResolver) Resolve(ctx context.Context, userID, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}

	latest, err := r.store.LatestMessage(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: latest message: %w", ErrStore, err)
	}
	if latest != nil && latest.ConversationID != "" {
		return latest.ConversationID, nil
	}

	return NewConversationID(userID, r.now()), nil
}

// LatestPointer is a fast lookup of a user's latest conversation id.
// Get returns "" when nothing is recorded.
type LatestPointer interface {
	GetLatest(ctx context.Context, userID string) (string, error)
	SetLatest(ctx context.Context, userID, conversationID string) error
	ClearLatest(ctx context.Context, userID string) error
}

// CachedResolver consults a LatestPointer before falling back to the
// store-backed resolver. Pointer failures degrade to the fallback.
type CachedResolver struct {
	pointer  LatestPointer
	fallback ConversationResolver
	logger   *zap.Logger
}

func NewCachedResolver(pointer LatestPointer, fallback ConversationResolver, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{pointer: pointer, fallback: fallback, logger: utils.LoggerOrNop(logger)}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}

	cached, err := r.pointer.GetLatest(ctx, userID)
	if err != nil {
		r.logger.Warn("latest conversation lookup failed", zap.String("user_id", userID), zap.Error(err))
	} else if cached != "" {
		return cached, nil
	}

	return r.fallback.Resolve(ctx, userID, "")
}

// Remember points the user at conversationID. When the write fails the
// pointer is dropped so the next Resolve reads the store instead of a stale id.
func (r *CachedResolver) Remember(ctx context.Context, userID, conversationID string) error {
	err := r.pointer.SetLatest(ctx, userID, conversationID)
	if err == nil {
		return nil
	}
	if clearErr := r.pointer.ClearLatest(ctx, userID); clearErr != nil {
		return errors.Join(err, fmt.Errorf("clear stale pointer: %w", clearErr))
	}
	return err
}
