package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/llm"
	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

var (
	ErrInvalidRequest = errors.New("chat: message and userId are required")
	ErrUpstream       = errors.New("chat: upstream failure")
	ErrStore          = errors.New("chat: store failure")
)

// Completer generates an assistant reply for a prompt sequence.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type TurnRequest struct {
	Message        string
	UserID         string
	ConversationID string
	Guest          bool
}

type TurnResult struct {
	Reply          string `json:"response"`
	ConversationID string `json:"conversationId"`
}

// Service runs one chat turn per call. No state survives between calls;
// history is reloaded from the store every time.
type Service struct {
	store    MessageStore
	resolver ConversationResolver
	llm      Completer
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store MessageStore, resolver ConversationResolver, completer Completer, logger *zap.Logger) *Service {
	if resolver == nil {
		resolver = NewLatestConversationResolver(store)
	}
	return &Service{
		store:    store,
		resolver: resolver,
		llm:      completer,
		logger:   utils.LoggerOrNop(logger),
		now:      time.Now,
	}
}

// HandleTurn persists the user turn, replays the conversation upstream and
// persists the reply. Guest turns touch neither the store nor the resolver.
// A user turn saved before an upstream failure stays saved.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Message)
	userID := strings.TrimSpace(req.UserID)
	if text == "" || userID == "" {
		return nil, ErrInvalidRequest
	}

	logger := s.logger.With(zap.String("user_id", userID), zap.Bool("guest", req.Guest))

	conversationID, err := s.resolveConversation(ctx, userID, req.ConversationID, req.Guest)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("conversation_id", conversationID))

	userTurn := models.Message{UserID: userID, ConversationID: conversationID, Role: models.RoleUser, Text: text}

	var history []models.Message
	if !req.Guest {
		if _, err := s.save(ctx, userTurn); err != nil {
			return nil, err
		}

		history, err = s.store.GetMessagesByUser(ctx, userID, conversationID)
		if err != nil {
			return nil, fmt.Errorf("%w: load history: %w", ErrStore, err)
		}
	}
	if len(history) == 0 {
		history = []models.Message{userTurn}
	}

	reply, err := s.llm.Complete(ctx, BuildPrompt(history))
	if err != nil {
		if !errors.Is(err, llm.ErrMalformedReply) {
			logger.Error("upstream completion failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		logger.Warn("upstream reply unusable, using fallback", zap.Error(err))
		reply = FallbackReply
	}

	if !req.Guest {
		assistantTurn := models.Message{UserID: userID, ConversationID: conversationID, Role: models.RoleAssistant, Text: reply}
		if _, err := s.save(ctx, assistantTurn); err != nil {
			return nil, err
		}
	}

	logger.Info("chat turn completed", zap.Int("history_turns", len(history)))

	return &TurnResult{Reply: reply, ConversationID: conversationID}, nil
}

// ListMessages returns the user's turns, optionally narrowed to one conversation.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	messages, err := s.store.GetMessagesByUser(ctx, userID, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrStore, err)
	}
	return messages, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID, requested string, guest bool) (string, error) {
	if guest {
		if requested = strings.TrimSpace(requested); requested != "" {
			return requested, nil
		}
		return NewConversationID(userID, s.now()), nil
	}
	return s.resolver.Resolve(ctx, userID, requested)
}

func (s *Service) save(ctx context.Context, msg models.Message) (models.Message, error) {
	saved, err := s.store.SaveMessage(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: save %s turn: %w", ErrStore, msg.Role, err)
	}

	if recorder, ok := s.resolver.(ConversationRecorder); ok {
		if err := recorder.Remember(ctx, saved.UserID, saved.ConversationID); err != nil {
			s.logger.Warn("failed to record latest conversation", zap.String("user_id", saved.UserID), zap.Error(err))
		}
	}

	return saved, nil
}
