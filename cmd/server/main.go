package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/api"
	"github.com/wuwenbin0122/wellbeing-chat/internal/auth"
	"github.com/wuwenbin0122/wellbeing-chat/internal/chat"
	"github.com/wuwenbin0122/wellbeing-chat/internal/db"
	"github.com/wuwenbin0122/wellbeing-chat/internal/llm"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to initialise: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var (
		messages chat.MessageStore
		users    auth.UserStore
	)

	switch cfg.StoreBackend {
	case utils.BackendMongo:
		mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			logger.Fatal("mongo: failed to connect", zap.Error(err))
		}
		closers = append(closers, func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				logger.Warn("mongo: close error", zap.Error(err))
			}
		})

		if err := mongoStore.EnsureCollections(ctx); err != nil {
			logger.Fatal("mongo: ensure collections", zap.Error(err))
		}

		messages = db.NewMongoMessageStore(mongoStore)
		if cfg.UserStore == utils.BackendMongo {
			users = db.NewMongoUserStore(mongoStore)
		}
	default:
		logger.Warn("using in-memory message store; history is lost on restart")
		messages = chat.NewMemoryStore()
	}

	switch cfg.UserStore {
	case utils.BackendPostgres:
		postgres, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal("postgres: failed to connect", zap.Error(err))
		}
		closers = append(closers, postgres.Close)

		if err := postgres.Ping(ctx); err != nil {
			logger.Fatal("postgres: ping failed", zap.Error(err))
		}
		if err := postgres.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres: ensure schema", zap.Error(err))
		}
		users = db.NewPostgresUserStore(postgres)
	case utils.BackendMemory:
		users = auth.NewMemoryStore()
	}
	if users == nil {
		logger.Fatal("no user store configured", zap.String("user_store", cfg.UserStore))
	}

	var resolver chat.ConversationResolver = chat.NewLatestConversationResolver(messages)
	if cfg.Redis.Enabled() {
		redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("redis: failed to connect", zap.Error(err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		resolver = chat.NewCachedResolver(db.NewRedisLatestPointer(redisClient, cfg.Redis.TTL), resolver, logger)
	}

	authService, err := auth.NewService(users, cfg.JWT.Secret, cfg.JWT.TTL, logger)
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	completer := llm.NewClient(cfg.LLM, logger)
	chatService := chat.NewService(messages, resolver, completer, logger)
	recipes := chat.NewRecipeService(completer, logger)

	handler := api.NewHandler(authService, chatService, recipes, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.RequestTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("store_backend", cfg.StoreBackend),
			zap.String("user_store", cfg.UserStore),
			zap.Bool("redis", cfg.Redis.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}
