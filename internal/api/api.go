package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/auth"
	"github.com/wuwenbin0122/wellbeing-chat/internal/chat"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

const contextUserIDKey = "userID"

var (
	errMissingUserID  = errors.New("userId is required")
	errUserIDMismatch = errors.New("userId does not match the authenticated user")
)

type Handler struct {
	authService *auth.Service
	chat        *chat.Service
	recipes     *chat.RecipeService
	logger      *zap.Logger
}

func NewHandler(authService *auth.Service, chatService *chat.Service, recipes *chat.RecipeService, logger *zap.Logger) *Handler {
	return &Handler{
		authService: authService,
		chat:        chatService,
		recipes:     recipes,
		logger:      utils.LoggerOrNop(logger),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.handleHealth)

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/signup", h.handleSignup)
	authGroup.POST("/login", h.handleLogin)

	chatGroup := apiGroup.Group("", h.optionalAuth())
	chatGroup.POST("/chat", h.handleSubmitMessage)
	chatGroup.POST("/therapy", h.handleSubmitMessage)
	chatGroup.GET("/messages", h.handleListMessages)
	chatGroup.GET("/chat/ws", h.handleChatSocket)

	apiGroup.POST("/recipe", h.handleRecipe)
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type submitMessageRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Guest          bool   `json:"guest"`
}

type recipeRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordTooWeak):
			writeError(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: "))
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(c, http.StatusConflict, "email already registered")
		default:
			h.logger.Error("signup failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "failed to login")
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

func (h *Handler) handleSubmitMessage(c *gin.Context) {
	var req submitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	userID, err := resolveUserID(c, req.UserID)
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	result, err := h.chat.HandleTurn(c.Request.Context(), chat.TurnRequest{
		Message:        req.Message,
		UserID:         userID,
		ConversationID: req.ConversationID,
		Guest:          req.Guest,
	})
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleListMessages(c *gin.Context) {
	userID, err := resolveUserID(c, c.Query("userId"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	if userID == "" {
		writeError(c, http.StatusBadRequest, errMissingUserID.Error())
		return
	}

	messages, err := h.chat.ListMessages(c.Request.Context(), userID, c.Query("conversationId"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *Handler) handleRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	recipe, err := h.recipes.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			writeError(c, http.StatusBadRequest, "prompt is required")
			return
		}
		h.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipe)
}

// optionalAuth accepts requests without credentials. A bearer token, when
// sent, must be valid; its subject becomes the request's user id.
func (h *Handler) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.Next()
			return
		}

		claims, err := h.authService.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextUserIDKey, claims.Subject)
		c.Next()
	}
}

func resolveUserID(c *gin.Context, explicit string) (string, error) {
	return matchUserID(c.GetString(contextUserIDKey), explicit)
}

// matchUserID prefers the token subject and falls back to the explicit id.
// An explicit id that contradicts the token is rejected.
func matchUserID(authenticated, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)

	switch {
	case authenticated == "":
		return explicit, nil
	case explicit == "" || explicit == authenticated:
		return authenticated, nil
	default:
		return "", errUserIDMismatch
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (h *Handler) writeChatError(c *gin.Context, err error) {
	status, message := chatErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	writeError(c, status, message)
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		return http.StatusBadRequest, "message and userId are required"
	case errors.Is(err, errUserIDMismatch):
		return http.StatusForbidden, errUserIDMismatch.Error()
	case errors.Is(err, chat.ErrUpstream):
		return http.StatusInternalServerError, "failed to get a response from the assistant"
	case errors.Is(err, chat.ErrStore):
		return http.StatusInternalServerError, "failed to access conversation history"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func newAuthResponse(result *auth.AuthResult) gin.H {
	return gin.H{
		"id":        result.User.ID,
		"email":     result.User.Email,
		"name":      result.User.Name,
		"isNewUser": result.IsNewUser,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
