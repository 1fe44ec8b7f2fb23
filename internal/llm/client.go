package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrMalformedReply marks a successful upstream response whose body did not
// carry a usable first choice.
var ErrMalformedReply = errors.New("llm: malformed reply")

// Message is one prompt turn sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends chat-completion requests to an OpenAI-compatible endpoint.
// Every call is single-shot.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewClient(cfg utils.LLMConfig, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := utils.NormalizeLLMBaseURL(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}

	clientConfig.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout()}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: utils.LoggerOrNop(logger),
	}
}

// Complete returns the text of the first choice. Transport failures and
// non-2xx responses are returned wrapped; an unusable 2xx body yields
// ErrMalformedReply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if isDecodeError(err) {
			c.logger.Warn("llm reply could not be decoded", zap.Error(err))
			return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}

	c.logger.Debug("llm reply received",
		zap.String("model", c.model),
		zap.Int("prompt_turns", len(messages)),
		zap.Duration("latency", time.Since(started)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedReply)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedReply)
	}

	return reply, nil
}

func isDecodeError(err error) bool {
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	var urlErr *url.Error
	if errors.As(err, &reqErr) || errors.As(err, &apiErr) || errors.As(err, &urlErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
