package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/chat"
)

const (
	socketReadLimit   = 64 * 1024
	socketIdleTimeout = 5 * time.Minute
	socketWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// origin policy is enforced by the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

type socketReply struct {
	Response       string `json:"response,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleChatSocket runs one chat turn per inbound text frame. Frames are
// handled sequentially; the connection closes on read error or idle timeout.
func (h *Handler) handleChatSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(socketReadLimit)
	authenticated := c.GetString(contextUserIDKey)
	ctx := c.Request.Context()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(socketIdleTimeout))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		reply := h.socketTurn(ctx, authenticated, data)
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handler) socketTurn(ctx context.Context, authenticated string, data []byte) socketReply {
	var req submitMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return socketReply{Error: "invalid payload"}
	}

	userID, err := matchUserID(authenticated, req.UserID)
	if err != nil {
		_, message := chatErrorStatus(err)
		return socketReply{Error: message}
	}

	result, err := h.chat.HandleTurn(ctx, chat.TurnRequest{
		Message:        req.Message,
		UserID:         userID,
		ConversationID: req.ConversationID,
		Guest:          req.Guest,
	})
	if err != nil {
		status, message := chatErrorStatus(err)
		if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
			h.logger.Error("websocket turn failed", zap.Error(err))
		}
		return socketReply{Error: message}
	}

	return socketReply{Response: result.Reply, ConversationID: result.ConversationID}
}
