package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

// NewRouter wires middleware, routes and the not-found fallback.
func NewRouter(handler *Handler, allowedOrigins []string, logger *zap.Logger) *gin.Engine {
	logger = utils.LoggerOrNop(logger)

	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger), corsMiddleware(allowedOrigins))

	handler.RegisterRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// recovery turns panics into a structured 500 without exposing the panic value.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
